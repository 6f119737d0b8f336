package intervalcache

// Optimize is exported for testing
var Optimize = optimize
