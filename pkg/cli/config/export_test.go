package config

import "time"

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewSourceForTest creates a Source config for testing purposes
func NewSourceForTest(kind string) *Source {
	return &Source{
		kind:        kind,
		httpPath:    "/matchenatinderze",
		httpTimeout: time.Second,
	}
}

// SetSlackToken sets the bot token for testing purposes
func (x *Source) SetSlackToken(token string) {
	x.slackToken = token
}

// SetHTTPBaseURL sets the API base URL for testing purposes
func (x *Source) SetHTTPBaseURL(u string) {
	x.httpBaseURL = u
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
	}
}
