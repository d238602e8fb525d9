package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"drivernet/internal/model"
	"drivernet/pkg/drivernet"
)

// jobFile is the YAML document accepted by run and validate.
type jobFile struct {
	Network    model.Network    `yaml:"network"`
	Parameters model.Parameters `yaml:"parameters"`
}

// loadRunRequestFromConfig reads a job file. Parameters it leaves out keep
// their default values; unknown keys are rejected.
func loadRunRequestFromConfig(path string) (drivernet.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return drivernet.RunRequest{}, err
	}
	return decodeRunRequest(data)
}

func decodeRunRequest(data []byte) (drivernet.RunRequest, error) {
	file := jobFile{Parameters: model.DefaultParameters()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return drivernet.RunRequest{}, errors.New("job file is empty")
		}
		return drivernet.RunRequest{}, fmt.Errorf("decode job file: %w", err)
	}
	if len(file.Network.Nodes) == 0 {
		return drivernet.RunRequest{}, errors.New("job file defines no nodes")
	}
	return drivernet.RunRequest{Network: file.Network, Parameters: file.Parameters}, nil
}
