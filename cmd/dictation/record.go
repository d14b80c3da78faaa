package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/recorder"
)

func runStart(args []string) int {
	fs, configPath := newFlagSet("start")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		path, err := a.service.StartRecording(ctx)
		if errors.Is(err, recorder.ErrAlreadyRecording) {
			fmt.Fprintln(os.Stderr, "Already recording. Use 'dictation stop' to stop and transcribe.")
			return 1
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Recording started: %s\n", path)
		return 0
	})
}

func runStop(args []string) int {
	fs, configPath := newFlagSet("stop")
	noInject := fs.Bool("no-inject", false, "Do not type the text into the focused window")
	keepAudio := fs.Bool("keep-audio", false, "Keep the audio file after transcription")
	jsonOut := fs.Bool("json", false, "Output the full outcome as JSON")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		if !a.service.IsRecording(ctx) {
			fmt.Fprintln(os.Stderr, "No recording in progress. Use 'dictation start' first.")
			return 1
		}

		opts := dictation.StopOptions{KeepAudio: *keepAudio}
		if *noInject {
			no := false
			opts.Inject = &no
		}
		o, err := a.service.StopRecording(ctx, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if o == nil {
			fmt.Fprintln(os.Stderr, "Recording stopped but no audio was captured.")
			return 1
		}
		return printOutcome(o, *jsonOut)
	})
}

func runStatus(args []string) int {
	fs, configPath := newFlagSet("status")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		info, err := a.service.RecordingInfo(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if *jsonOut {
			return printJSON(struct {
				Recording bool           `json:"recording"`
				Session   *recorder.Info `json:"session,omitempty"`
			}{info != nil, info})
		}
		if info == nil {
			fmt.Println("Not recording.")
			return 0
		}
		fmt.Printf("Recording in progress for %ds.\n", int(info.Elapsed.Seconds()))
		fmt.Printf("File: %s\n", info.File)
		fmt.Printf("PID: %d\n", info.PID)
		return 0
	})
}

func runTranscribe(args []string) int {
	fs, configPath := newFlagSet("transcribe")
	model := fs.String("model", "", "Model to use (default: preferences, then config)")
	language := fs.String("language", "", "Language code (default: preferences, then config)")
	doInject := fs.Bool("inject", false, "Type the text into the focused window")
	deleteAudio := fs.Bool("delete-audio", false, "Delete the audio file after transcription")
	jsonOut := fs.Bool("json", false, "Output the full outcome as JSON")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) != 1 {
		printTranscribeHelp()
		return 1
	}
	file := positionals[0]
	if _, err := os.Stat(file); err != nil {
		fmt.Fprintf(os.Stderr, "File not found: %s\n", file)
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		o, err := a.service.Transcribe(ctx, dictation.TranscribeRequest{
			File:      file,
			Model:     *model,
			Language:  *language,
			Inject:    doInject,
			KeepAudio: !*deleteAudio,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return printOutcome(o, *jsonOut)
	})
}

// printOutcome writes the transcript to stdout and a summary to stderr so the
// text can be piped on its own.
func printOutcome(o *dictation.Outcome, jsonOut bool) int {
	if jsonOut {
		return printJSON(o)
	}
	fmt.Println(o.Result.Text)

	r := o.Result
	fmt.Fprintf(os.Stderr, "Model: %s | Language: %s | Processing: %.1fs | Segments: %d\n",
		r.Model, r.Language, r.Processing().Seconds(), len(r.Segments))
	if o.Injected {
		fmt.Fprintln(os.Stderr, "Text injected into focused window.")
	}
	for _, s := range o.Steps {
		if s.Status == dictation.StepFailed {
			fmt.Fprintf(os.Stderr, "Warning: %s failed: %s\n", s.Step, s.Error)
		}
	}
	return 0
}
