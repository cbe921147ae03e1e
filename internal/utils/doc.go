// Package utils hosts shared infrastructure for the dotkeep CLI: the Viper
// configuration loader and the zap logger factory.
package utils
