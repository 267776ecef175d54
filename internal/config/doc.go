// Package config loads the settings shared by the application server and
// the AI worker from config.yaml and VIVAFLOW_* environment variables, and
// validates them before either process starts.
package config
