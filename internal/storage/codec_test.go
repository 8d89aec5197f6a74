package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gridforge/internal/grid"
	"gridforge/internal/model"
)

func sampleSnapshot(t *testing.T) model.Snapshot {
	t.Helper()
	g, err := grid.Parse(strings.NewReader("A B\nXX C\n"))
	if err != nil {
		t.Fatalf("parse grid: %v", err)
	}
	return model.Snapshot{
		RunID:        "run-1",
		SavedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		NextMemberID: 4,
		Generation:   12,
		Populations: map[string]model.PopulationRecord{
			"main": {
				Phase:           1,
				PhaseGeneration: 3,
				Families: []model.FamilyRecord{
					{LastImproved: 9, Members: []model.MemberRecord{
						{ID: 1, Grid: g, Metrics: map[string]any{"power": 12.5}, Score: 12.5},
						{ID: 3, Grid: g.Clone(), Score: 4},
					}},
					{LastImproved: 11, Members: []model.MemberRecord{{ID: 2, Grid: g.Clone(), Score: 1}}},
				},
			},
		},
	}
}

func checkSnapshotEqual(t *testing.T, want, got model.Snapshot) {
	t.Helper()
	if got.SchemaVersion != CurrentSchemaVersion || got.CodecVersion != CurrentCodecVersion {
		t.Fatalf("unexpected version: %+v", got.VersionedRecord)
	}
	if got.RunID != want.RunID || got.Generation != want.Generation || got.NextMemberID != want.NextMemberID {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Fatalf("saved_at = %v, want %v", got.SavedAt, want.SavedAt)
	}
	if len(got.Populations) != len(want.Populations) {
		t.Fatalf("populations = %d, want %d", len(got.Populations), len(want.Populations))
	}
	for name, wantPop := range want.Populations {
		gotPop, ok := got.Populations[name]
		if !ok {
			t.Fatalf("missing population %s", name)
		}
		if gotPop.Phase != wantPop.Phase || gotPop.PhaseGeneration != wantPop.PhaseGeneration {
			t.Fatalf("population %s position = %d/%d", name, gotPop.Phase, gotPop.PhaseGeneration)
		}
		if len(gotPop.Families) != len(wantPop.Families) {
			t.Fatalf("population %s families = %d", name, len(gotPop.Families))
		}
		for fi, wantFamily := range wantPop.Families {
			gotFamily := gotPop.Families[fi]
			if gotFamily.LastImproved != wantFamily.LastImproved || len(gotFamily.Members) != len(wantFamily.Members) {
				t.Fatalf("family %d = %+v", fi, gotFamily)
			}
			for mi, wantMember := range wantFamily.Members {
				gotMember := gotFamily.Members[mi]
				if gotMember.ID != wantMember.ID || gotMember.Score != wantMember.Score {
					t.Fatalf("member %d/%d = %+v", fi, mi, gotMember)
				}
				if !gotMember.Grid.Equal(wantMember.Grid) {
					t.Fatalf("member %d grid = %s, want %s", gotMember.ID, gotMember.Grid, wantMember.Grid)
				}
			}
		}
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	input := sampleSnapshot(t)
	data, err := EncodeSnapshot(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	checkSnapshotEqual(t, input, output)
	if got := output.Populations["main"].Families[0].Members[0].Metrics["power"]; got != 12.5 {
		t.Fatalf("metrics power = %v", got)
	}
}

func TestSnapshotCodecVersionMismatch(t *testing.T) {
	data := []byte(`{"schema_version":99,"codec_version":1,"next_member_id":1,"generation":0,"populations":{}}`)
	_, err := DecodeSnapshot(data)
	if err == nil {
		t.Fatal("expected version mismatch")
	}
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %T", err)
	}
}

func TestSnapshotCodecRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"truncated":       `{"schema_version":1,`,
		"not an object":   `[1,2,3]`,
		"negative gen":    `{"schema_version":1,"codec_version":1,"next_member_id":1,"generation":-1}`,
		"negative phase":  `{"schema_version":1,"codec_version":1,"next_member_id":1,"populations":{"p":{"phase":-1}}}`,
		"missing grid":    `{"schema_version":1,"codec_version":1,"next_member_id":5,"populations":{"p":{"families":[{"members":[{"id":1}]}]}}}`,
		"grid size":       `{"schema_version":1,"codec_version":1,"next_member_id":5,"populations":{"p":{"families":[{"members":[{"id":1,"grid":{"width":2,"height":2,"data":["A"]}}]}]}}}`,
		"duplicate id":    `{"schema_version":1,"codec_version":1,"next_member_id":5,"populations":{"p":{"families":[{"members":[{"id":1,"grid":{"width":1,"height":1,"data":["A"]}},{"id":1,"grid":{"width":1,"height":1,"data":["B"]}}]}]}}}`,
		"id beyond next":  `{"schema_version":1,"codec_version":1,"next_member_id":2,"populations":{"p":{"families":[{"members":[{"id":2,"grid":{"width":1,"height":1,"data":["A"]}}]}]}}}`,
		"missing version": `{"next_member_id":1}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(payload))
			if err == nil {
				t.Fatal("expected decode error")
			}
			var perr *PersistenceError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PersistenceError, got %T: %v", err, err)
			}
		})
	}
}

func TestEncodeSnapshotStampsVersion(t *testing.T) {
	input := sampleSnapshot(t)
	input.VersionedRecord = model.VersionedRecord{SchemaVersion: 7, CodecVersion: 7}
	data, err := EncodeSnapshot(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeSnapshot(data); err != nil {
		t.Fatalf("decode stamped snapshot: %v", err)
	}
}

func TestGenerationDiagnosticsCodecRoundTrip(t *testing.T) {
	input := []model.GenerationDiagnostics{
		{Generation: 0, Population: "main", Candidates: 8, Families: 3, BestScore: 1.5, BestMember: 2},
		{Generation: 1, Population: "main", Candidates: 9, Failed: 1, Families: 4, Pruned: 1, BestScore: 2.5, BestMember: 7},
	}
	data, err := EncodeGenerationDiagnostics(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeGenerationDiagnostics(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(output) != 2 || output[1] != input[1] {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}
}
