package hardware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 3 * time.Second

// DefaultAcceleratorProbes returns the probes for the current platform,
// most specific first.
func DefaultAcceleratorProbes() []AcceleratorProbe {
	probes := []AcceleratorProbe{NvidiaProbe}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		probes = append(probes, AppleSiliconProbe)
	}
	return probes
}

// NvidiaProbe queries nvidia-smi for the first GPU's name and memory.
func NvidiaProbe(ctx context.Context) (Accelerator, error) {
	out, err := runProbe(ctx, "nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return Accelerator{}, err
	}
	return parseNvidiaSMI(out)
}

func parseNvidiaSMI(out []byte) (Accelerator, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return Accelerator{}, fmt.Errorf("unexpected nvidia-smi output %q", line)
		}
		mem, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
		if err != nil {
			return Accelerator{}, fmt.Errorf("parse nvidia-smi memory: %w", err)
		}
		return Accelerator{Vendor: "nvidia", MemoryMB: mem}, nil
	}
	return Accelerator{}, fmt.Errorf("nvidia-smi reported no devices")
}

// AppleSiliconProbe reads unified memory size via sysctl.
func AppleSiliconProbe(ctx context.Context) (Accelerator, error) {
	out, err := runProbe(ctx, "sysctl", "-n", "hw.memsize")
	if err != nil {
		return Accelerator{}, err
	}
	return parseMemsize(out)
}

func parseMemsize(out []byte) (Accelerator, error) {
	bytesTotal, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return Accelerator{}, fmt.Errorf("parse hw.memsize: %w", err)
	}
	return Accelerator{Vendor: "apple", MemoryMB: int(bytesTotal / (1024 * 1024))}, nil
}

// BinaryOnPath reports a portable runtime when name is on PATH.
func BinaryOnPath(name string) RuntimeProbe {
	return func(context.Context) bool {
		_, err := exec.LookPath(name)
		return err == nil
	}
}

// AnyOf succeeds when any probe succeeds, trying them in order.
func AnyOf(probes ...RuntimeProbe) RuntimeProbe {
	return func(ctx context.Context) bool {
		for _, p := range probes {
			if p != nil && p(ctx) {
				return true
			}
		}
		return false
	}
}

func runProbe(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}
