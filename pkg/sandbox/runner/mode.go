package runner

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Supported runtime modes.
const (
	ModePython = "python"
	ModeGolang = "golang"
	ModeNode   = "node"
	ModeShell  = "shell"
)

// modeCommands maps each mode to the binary that must be in PATH, in
// auto-detection priority order.
var modeCommands = []struct {
	mode string
	cmd  string
}{
	{ModePython, "python3"},
	{ModeGolang, "go"},
	{ModeNode, "node"},
	{ModeShell, "bash"},
}

type runtimeSpec struct {
	command []string
	ext     string
	env     []string
}

func runtimeFor(mode, workDir, outputDir string) runtimeSpec {
	env := []string{"OUTPUT_DIR=" + outputDir}
	switch mode {
	case ModeGolang:
		return runtimeSpec{[]string{"go", "run"}, ".go", env}
	case ModeNode:
		return runtimeSpec{[]string{"node"}, ".js", env}
	case ModeShell:
		return runtimeSpec{[]string{"bash"}, ".sh", env}
	default:
		return runtimeSpec{[]string{"python3"}, ".py", append(env, "PYTHONPATH="+filepath.Join(workDir, ".pylibs"))}
	}
}

// DetectMode returns the first mode whose runtime is in PATH, or "".
func DetectMode() string {
	for _, c := range modeCommands {
		if _, err := exec.LookPath(c.cmd); err == nil {
			return c.mode
		}
	}
	return ""
}

// ValidateMode checks that mode is supported and its runtime is in PATH.
func ValidateMode(mode string) error {
	for _, c := range modeCommands {
		if c.mode != mode {
			continue
		}
		if _, err := exec.LookPath(c.cmd); err != nil {
			return fmt.Errorf("mode=%s but %q not found in PATH", mode, c.cmd)
		}
		return nil
	}
	return fmt.Errorf("unsupported mode %q (supported: python, golang, node, shell)", mode)
}

// RuntimeVersion returns the first line of the runtime's version output.
func RuntimeVersion(mode string) string {
	var cmd *exec.Cmd
	switch mode {
	case ModePython:
		cmd = exec.Command("python3", "--version")
	case ModeGolang:
		cmd = exec.Command("go", "version")
	case ModeNode:
		cmd = exec.Command("node", "--version")
	case ModeShell:
		cmd = exec.Command("bash", "--version")
	default:
		return "unknown"
	}

	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return version
}
