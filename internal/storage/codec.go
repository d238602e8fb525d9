package storage

import (
	"encoding/json"
	"errors"

	"drivernet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeJob(job model.Job) ([]byte, error) {
	return json.Marshal(job)
}

func DecodeJob(data []byte) (model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return model.Job{}, err
	}
	if err := checkVersion(job.VersionedRecord); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
