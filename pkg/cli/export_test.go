package cli

var (
	DecodeMessages  = decodeMessages
	LoadChannels    = loadChannels
	WriteLoadResult = writeLoadResult
	GetIndexConfig  = getIndexConfig
)
