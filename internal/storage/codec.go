package storage

import (
	"encoding/json"
	"fmt"

	"gridforge/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// CurrentVersion is stamped on every record this build writes.
var CurrentVersion = model.VersionedRecord{
	SchemaVersion: CurrentSchemaVersion,
	CodecVersion:  CurrentCodecVersion,
}

// EncodeSnapshot stamps the current record version and marshals s.
func EncodeSnapshot(s model.Snapshot) ([]byte, error) {
	s.VersionedRecord = CurrentVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, &PersistenceError{Op: "encode snapshot", Err: err}
	}
	return data, nil
}

// DecodeSnapshot unmarshals and checks a snapshot. Every failure is a
// *PersistenceError.
func DecodeSnapshot(data []byte) (model.Snapshot, error) {
	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot{}, &PersistenceError{Op: "decode snapshot", Err: err}
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.Snapshot{}, &PersistenceError{Op: "decode snapshot", Err: err}
	}
	if err := checkSnapshot(snapshot); err != nil {
		return model.Snapshot{}, &PersistenceError{Op: "decode snapshot", Err: err}
	}
	return snapshot, nil
}

func checkSnapshot(s model.Snapshot) error {
	if s.Generation < 0 {
		return fmt.Errorf("%w: negative generation %d", ErrMalformedSnapshot, s.Generation)
	}
	seen := make(map[int64]string)
	for name, pop := range s.Populations {
		if pop.Phase < 0 || pop.PhaseGeneration < 0 {
			return fmt.Errorf("%w: population %s has negative phase position", ErrMalformedSnapshot, name)
		}
		for fi, family := range pop.Families {
			for _, m := range family.Members {
				if m.Grid == nil {
					return fmt.Errorf("%w: population %s family %d member %d has no grid", ErrMalformedSnapshot, name, fi, m.ID)
				}
				if other, dup := seen[m.ID]; dup {
					return fmt.Errorf("%w: member id %d in both %s and %s", ErrMalformedSnapshot, m.ID, other, name)
				}
				if m.ID >= s.NextMemberID {
					return fmt.Errorf("%w: member id %d not below next_member_id %d", ErrMalformedSnapshot, m.ID, s.NextMemberID)
				}
				seen[m.ID] = name
			}
		}
	}
	return nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
