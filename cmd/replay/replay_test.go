package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
)

var (
	neutral   = liveness.FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, SmilingProbability: 0.1}
	blinking  = liveness.FaceObservation{LeftEyeOpenProbability: 0.1, RightEyeOpenProbability: 0.1}
	lookLeft  = liveness.FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, YawAngle: -25}
	lookRight = liveness.FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, YawAngle: 25}
	smiling   = liveness.FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, SmilingProbability: 0.95}
)

func one(obs liveness.FaceObservation) []liveness.FaceObservation {
	return []liveness.FaceObservation{obs}
}

func passingRun() [][]liveness.FaceObservation {
	frames := [][]liveness.FaceObservation{one(neutral), one(blinking), one(lookLeft), one(lookRight)}
	for i := 0; i < liveness.NodWindow-1; i++ {
		obs := neutral
		obs.RollAngle = 1
		frames = append(frames, one(obs))
	}
	nod := neutral
	nod.RollAngle = 4
	return append(frames, one(nod), one(smiling))
}

func recording(t *testing.T, frames [][]liveness.FaceObservation) string {
	t.Helper()
	var b strings.Builder
	for _, faces := range frames {
		raw, err := json.Marshal(frameLine{Faces: &faces})
		require.NoError(t, err)
		b.Write(raw)
		b.WriteByte('\n')
	}
	return b.String()
}

func newEngine() *liveness.Engine {
	return liveness.NewEngine(liveness.MustDefaultCatalog())
}

func TestReadFrames(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFrames int
		wantErr    string
	}{
		{
			name:       "one frame per line",
			input:      `{"faces":[{"left_eye_open_probability":0.9}]}` + "\n" + `{"faces":[]}` + "\n",
			wantFrames: 2,
		},
		{
			name:       "blank lines skipped",
			input:      "\n" + `{"faces":[]}` + "\n  \n" + `{"faces":[{},{}]}`,
			wantFrames: 2,
		},
		{
			name:    "malformed line",
			input:   `{"faces":[]}` + "\n" + `{"faces":[`,
			wantErr: "line 2",
		},
		{
			name:    "missing faces",
			input:   `{"frame":1}`,
			wantErr: "faces is required",
		},
		{
			name:       "empty recording",
			input:      "",
			wantFrames: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := readFrames(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, frames, tt.wantFrames)
		})
	}
}

func TestReadFrames_FaceCounts(t *testing.T) {
	frames, err := readFrames(strings.NewReader(recording(t, [][]liveness.FaceObservation{
		{}, one(neutral), {neutral, neutral},
	})))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], 0)
	assert.Equal(t, neutral, frames[1][0])
	assert.Len(t, frames[2], 2)
}

func TestReplay_PassingRun(t *testing.T) {
	var out bytes.Buffer
	calls := 0

	result := replay(nil, newEngine(), passingRun(), &out, false, func() { calls++ })

	assert.True(t, result.Final.Complete)
	assert.Equal(t, float64(100), result.Final.Progress)
	assert.Equal(t, 15, result.Frames)
	assert.Equal(t, 0, result.Resets)
	assert.Equal(t, 15, calls)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// face_detected, four advances, completed
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "face_detected")
	assert.Contains(t, lines[1], "passed=BLINK")
	assert.Contains(t, lines[5], "completed passed=SMILE")
}

func TestReplay_LostFaceResets(t *testing.T) {
	frames := [][]liveness.FaceObservation{one(neutral), one(blinking), {}, one(neutral)}

	var out bytes.Buffer
	result := replay(nil, newEngine(), frames, &out, false, nil)

	assert.False(t, result.Final.Complete)
	assert.Equal(t, 1, result.Resets)
	assert.Equal(t, 0, result.Final.ChallengeIndex)
	assert.Contains(t, out.String(), "frame 3: faces=0 reset")
}

func TestReplay_Verbose(t *testing.T) {
	frames := [][]liveness.FaceObservation{one(neutral), one(neutral), one(neutral)}

	var out bytes.Buffer
	replay(nil, newEngine(), frames, &out, true, nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "none")
}

func TestReplay_StopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)

	result := replay(done, newEngine(), passingRun(), &bytes.Buffer{}, false, nil)
	assert.Equal(t, 0, result.Frames)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()

	complete := filepath.Join(dir, "complete.jsonl")
	require.NoError(t, os.WriteFile(complete, []byte(recording(t, passingRun())), 0o600))

	partial := filepath.Join(dir, "partial.jsonl")
	require.NoError(t, os.WriteFile(partial, []byte(recording(t, passingRun()[:5])), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantOut string
	}{
		{"complete run", []string{complete, "-q"}, nil, "complete=true"},
		{"incomplete run", []string{partial, "-q"}, errIncomplete, "complete=false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestRunCommand_MissingFile(t *testing.T) {
	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.jsonl")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open recording")
}

func TestPrintCatalog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printCatalog(&out, liveness.MustDefaultCatalog()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "BLINK")
	assert.Contains(t, lines[1], "Blink both eyes")
	assert.Contains(t, lines[4], "NOD")
	assert.Contains(t, lines[5], "SMILE")
}
