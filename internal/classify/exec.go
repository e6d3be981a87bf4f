package classify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execClassifier struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Landmarks []float64 `json:"landmarks"`
}

// NewExecClassifier wraps an external model process. The command receives
// {"landmarks": [...]} on stdin and answers with one JSON line shaped like
// Result.
func NewExecClassifier(command string) (Classifier, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse classifier command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("classifier command empty")
	}
	return &execClassifier{cmd: args}, nil
}

func (e *execClassifier) Classify(ctx context.Context, landmarks []float64) (Result, error) {
	padded, hands, err := NormalizeLandmarks(landmarks)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(execRequest{Landmarks: padded})
	if err != nil {
		return Result{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	if _, err := stdin.Write(data); err != nil {
		stdin.Close()
		cmd.Wait()
		return Result{}, err
	}
	stdin.Close()

	var result Result
	scanner := bufio.NewScanner(stdout)
	var decoded bool
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &result); err != nil {
			cmd.Wait()
			return Result{}, fmt.Errorf("decode classifier output: %w", err)
		}
		decoded = true
		break
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("classifier process: %w", err)
	}
	if !decoded {
		if scanErr := scanner.Err(); scanErr != nil {
			return Result{}, scanErr
		}
		return Result{}, fmt.Errorf("classifier produced no output")
	}
	if result.HandsDetected == 0 {
		result.HandsDetected = hands
	}
	return result, nil
}
