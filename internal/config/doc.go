// Package config loads engine configuration from YAML or CUE files.
//
// YAML files are decoded with gopkg.in/yaml.v3. CUE files are unified with
// the embedded schema in schema.cue before decoding, so type errors and
// unknown keys are reported with CUE positions. Both paths finish with the
// same struct-tag validation.
//
// Keys absent from a file keep the values from Default. Relative directories
// are resolved against the directory holding the config file.
package config
