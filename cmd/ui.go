package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nikogura/resumelm/pkg/jd"
	"github.com/nikogura/resumelm/pkg/pdftext"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/progress"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// spinner animates a status line on stderr so stdout stays clean for piped output.
type spinner struct {
	out     io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	active  bool
	ran     bool
}

func newSpinner(message string) (s *spinner) {
	s = &spinner{
		out:     os.Stderr,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	return s
}

func (s *spinner) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// a spinner runs once
	if s.active || s.ran {
		return
	}
	s.active = true
	s.ran = true

	go func() {
		defer close(s.done)
		frames := `|/-\`
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		fmt.Fprintf(s.out, "%s ", s.message)
		for i := 0; ; i++ {
			select {
			case <-s.stop:
				fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(s.message)+2))
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r%s %c", s.message, frames[i%len(frames)])
			}
		}
	}()
}

// stopSpinner clears the line. It is safe to call more than once.
func (s *spinner) stopSpinner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false

	close(s.stop)
	<-s.done
}

// stageMessages are the spinner texts per progress label.
//
//nolint:gochecknoglobals // lookup table
var stageMessages = map[progress.Label]string{
	progress.LabelAnalyzing:  "Analyzing job description...",
	progress.LabelFormatting: "Formatting job and loading base resume...",
	progress.LabelTailoring:  "Tailoring resume content...",
	progress.LabelImporting:  "Extracting and merging content...",
	progress.LabelGenerating: "Generating...",
	progress.LabelFinalizing: "Saving...",
}

// stageReporter shows one spinner per progress label as a run moves through its stages.
type stageReporter struct {
	current *spinner
	label   progress.Label
}

// observe implements pipeline.Observer.
func (r *stageReporter) observe(runID string, state pipeline.State) {
	if getVerbose() {
		fmt.Printf("[%s] %s\n", runID, state.Stage)
		return
	}

	p := progress.FromState(state, time.Now())
	if state.Terminal() || p.Label != r.label {
		r.finish()
	}
	if state.Terminal() {
		return
	}

	if p.Label != r.label {
		r.label = p.Label
		r.current = newSpinner(stageMessages[p.Label])
		r.current.start()
	}
}

func (r *stageReporter) finish() {
	if r.current != nil {
		r.current.stopSpinner()
		r.current = nil
	}
	r.label = ""
}

// reportFailure prints the recovery prompt for a failed command.
func reportFailure(stage pipeline.Stage, err error) {
	p := progress.FromError(stage, err, time.Now())
	fmt.Fprintf(os.Stderr, "\n%s\n%s\n", p.Title, p.Message)
	if p.Recovery == progress.RecoveryChangeSettings {
		fmt.Fprintln(os.Stderr, "Add a key to the client.api_keys section of your config, or set ANTHROPIC_API_KEY, OPENAI_API_KEY or OPENROUTER_API_KEY.")
	}
}

// failedStage returns the stage a run failed at, or idle when it never started.
func failedStage(state pipeline.State) (stage pipeline.Stage) {
	stage = state.Stage
	if stage == pipeline.StageFailed {
		stage = state.FailedAt
	}
	return stage
}

func promptForInput(fieldName string) (input string) {
	fmt.Printf("%s was not provided.\n", fieldName)
	fmt.Printf("Please enter %s: ", strings.ToLower(fieldName))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		input = strings.TrimSpace(scanner.Text())
	}

	return input
}

// confirm asks a question on stdout and reports whether the answer matches one of accepted.
func confirm(question string, accepted ...string) (ok bool) {
	fmt.Printf("%s: ", question)

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return ok
	}

	answer := strings.TrimSpace(scanner.Text())
	for _, a := range accepted {
		if strings.EqualFold(answer, a) {
			ok = true
			return ok
		}
	}
	return ok
}

// readPasted reads text from stdin until EOF.
func readPasted(what string) (text string, err error) {
	fmt.Printf("\nPlease paste the %s below.\n", what)
	fmt.Println("When finished, press Ctrl+D (Unix/Mac) or Ctrl+Z then Enter (Windows):")
	fmt.Println()

	var data []byte
	data, err = io.ReadAll(os.Stdin)
	if err != nil {
		err = errors.Wrapf(err, "failed to read %s from stdin", what)
		return text, err
	}

	text = strings.TrimSpace(string(data))
	if text == "" {
		err = errors.Errorf("no %s provided", what)
		return text, err
	}

	fmt.Printf("\n%s received (%d characters)\n", what, len(text))
	return text, err
}

// loadJobDescription reads a job description from a file or URL, falling back to pasted text
// when a page cannot be fetched.
func loadJobDescription(input string) (jobDescription string, err error) {
	if input == "" || input == "-" {
		jobDescription, err = readPasted("job description")
		return jobDescription, err
	}

	if getVerbose() {
		fmt.Printf("Loading job description from: %s\n", input)
	}

	jobDescription, err = jd.Fetch(input)
	if err != nil {
		fmt.Printf("\nWarning: Failed to fetch job description: %v\n", err)
		fmt.Println("This often happens with JavaScript-rendered pages (Lever, Workable, etc.)")
		jobDescription, err = readPasted("job description")
		return jobDescription, err
	}

	if getVerbose() {
		fmt.Printf("Job description loaded (%d characters)\n", len(jobDescription))
	}

	return jobDescription, err
}

// loadImportText gathers import text from PDFs, text files, or stdin.
func loadImportText(pdfs []string, files []string) (text string, err error) {
	parts := make([]string, 0, len(pdfs)+len(files))

	if len(pdfs) > 0 {
		var extracted string
		extracted, err = pdftext.ExtractFiles(pdfs...)
		if err != nil {
			return text, err
		}
		parts = append(parts, extracted)
	}

	for _, f := range files {
		var data []byte
		data, err = os.ReadFile(f)
		if err != nil {
			err = errors.Wrapf(err, "failed to read file: %s", f)
			return text, err
		}
		parts = append(parts, string(data))
	}

	if len(parts) == 0 {
		text, err = readPasted("resume text")
		return text, err
	}

	text = pdftext.Join(parts...)
	return text, err
}

// printValue writes v to stdout as JSON or YAML.
func printValue(v interface{}, format string) (err error) {
	var data []byte
	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		err = errors.Wrap(err, "failed to render output")
		return err
	}

	fmt.Println(strings.TrimRight(string(data), "\n"))
	return err
}

func sanitizeFilename(name string) (sanitized string) {
	// Remove common company suffixes
	suffixes := []string{
		" LLC", " llc",
		" Inc.", " inc.",
		" Inc", " inc",
		" Corporation", " corporation",
		" Corp.", " corp.",
		" Corp", " corp",
		" Limited", " limited",
		" Ltd.", " ltd.",
		" Ltd", " ltd",
		", LLC", ", llc",
		", Inc.", ", inc.",
		", Inc", ", inc",
	}

	sanitized = name
	for _, suffix := range suffixes {
		sanitized = strings.TrimSuffix(sanitized, suffix)
	}

	sanitized = strings.ToLower(sanitized)

	// Replace spaces and special chars with hyphens
	sanitized = strings.Map(func(r rune) (result rune) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result = r
			return result
		}
		result = '-'
		return result
	}, sanitized)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}

	sanitized = strings.Trim(sanitized, "-")

	return sanitized
}
