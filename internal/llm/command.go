package llm

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRuntime runs a local model binary once per call, such as llama.cpp's
// llama-cli. The prompt goes to stdin and stdout is the reply. In Args the
// tokens {model}, {temperature} and {max_tokens} are replaced per call.
type CommandRuntime struct {
	Path string
	Args []string
}

// ParseCommand splits a command line on whitespace. Quoting is not supported.
func ParseCommand(line string) (CommandRuntime, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandRuntime{}, fmt.Errorf("empty local runtime command")
	}
	return CommandRuntime{Path: fields[0], Args: fields[1:]}, nil
}

func (c CommandRuntime) Generate(prompt, model string, temperature float64, maxTokens int) (string, error) {
	r := strings.NewReplacer(
		"{model}", model,
		"{temperature}", strconv.FormatFloat(temperature, 'f', -1, 64),
		"{max_tokens}", strconv.Itoa(maxTokens),
	)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.Command(c.Path, args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", c.Path, err, msg)
		}
		return "", fmt.Errorf("run %s: %w", c.Path, err)
	}
	return stdout.String(), nil
}
