package config

// CompiledPassword holds a password embedded at build time via -ldflags. It
// is used only when neither the configuration file nor RKVM_PASSWORD
// supplies one.
var CompiledPassword string
