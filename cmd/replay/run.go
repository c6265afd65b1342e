package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
)

// maxLineSize bounds one recorded frame.
const maxLineSize = 1 << 20

var errIncomplete = errors.New("liveness run did not complete")

type runOptions struct {
	Quiet   bool
	Verbose bool
}

// frameLine is one line of a recording.
type frameLine struct {
	Faces *[]liveness.FaceObservation `json:"faces"`
}

type replayResult struct {
	Frames int
	Resets int
	Final  liveness.Snapshot
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <file.jsonl>",
		Short: "Replay a recording, one {\"faces\":[...]} object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer func() { _ = f.Close() }()

			frames, err := readFrames(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			var onFrame func()
			if !opts.Quiet {
				bar := progressbar.NewOptions(len(frames),
					progressbar.OptionSetDescription("Replaying"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowCount(),
				)
				onFrame = func() { _ = bar.Add(1) }
				defer func() { _ = bar.Finish() }()
			}

			engine := liveness.NewEngine(liveness.MustDefaultCatalog())
			result := replay(cmd.Context().Done(), engine, frames, cmd.OutOrStdout(), opts.Verbose, onFrame)

			fmt.Fprintf(cmd.OutOrStdout(), "frames=%d resets=%d progress=%.2f complete=%t\n",
				result.Frames, result.Resets, result.Final.Progress, result.Final.Complete)

			if !result.Final.Complete {
				return errIncomplete
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Hide the progress bar")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print every frame, not only transitions")

	return cmd
}

// readFrames parses a recording. Blank lines are skipped.
func readFrames(r io.Reader) ([][]liveness.FaceObservation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var frames [][]liveness.FaceObservation
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var line frameLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if line.Faces == nil {
			return nil, fmt.Errorf("line %d: faces is required", lineNo)
		}
		frames = append(frames, *line.Faces)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return frames, nil
}

// replay feeds frames in order and prints every transition to out. It stops
// early when done is closed.
func replay(done <-chan struct{}, engine *liveness.Engine, frames [][]liveness.FaceObservation, out io.Writer, verbose bool, onFrame func()) replayResult {
	session := liveness.NewSession(engine)

	for i, faces := range frames {
		select {
		case <-done:
			return result(session)
		default:
		}

		prev := session.Snapshot()
		_, change := session.Feed(faces)
		if onFrame != nil {
			onFrame()
		}

		if change == liveness.ChangeNone && !verbose {
			continue
		}

		snap := session.Snapshot()
		fmt.Fprintf(out, "frame %d: faces=%d %s", i+1, len(faces), change)
		if change == liveness.ChangeAdvanced || change == liveness.ChangeCompleted {
			fmt.Fprintf(out, " passed=%s", prev.Challenge)
		}
		fmt.Fprintf(out, " progress=%.2f", snap.Progress)
		if snap.Instruction != "" {
			fmt.Fprintf(out, " next=%q", snap.Instruction)
		}
		fmt.Fprintln(out)
	}

	return result(session)
}

func result(session *liveness.Session) replayResult {
	return replayResult{
		Frames: session.Frames(),
		Resets: session.Resets(),
		Final:  session.Snapshot(),
	}
}
