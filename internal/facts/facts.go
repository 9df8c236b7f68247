/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package facts collects and parses the hardware/OS fact protocol: a
// vendored shell probe executed over SSH that emits "key=value" lines.
package facts

import (
	"bufio"
	"context"
	"strings"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
)

// KnownKeys enumerates the fixed fact keys every probe run is expected to
// emit, excluding the open-ended disk.<name> / interface.<name> entries.
var KnownKeys = []string{
	"os.name", "os.id", "kernel.version", "architecture", "hostname",
	"uptime.days", "cpu.model", "cpu.cores", "memory.mb",
	"virtualization.type", "container.engine", "system.serial",
	"system.uuid", "system.timezone",
}

// probeScript is the vendored shell probe. It is deliberately conservative
// POSIX sh so it runs unmodified on whatever NixOS generation is currently
// active on the remote host.
const probeScript = `
set -eu
echo "os.name=$(uname -s)"
echo "os.id=$( . /etc/os-release 2>/dev/null; echo "${ID:-unknown}")"
echo "kernel.version=$(uname -r)"
echo "architecture=$(uname -m)"
echo "hostname=$(hostname)"
echo "uptime.days=$(awk '{print int($1/86400)}' /proc/uptime 2>/dev/null || echo 0)"
echo "cpu.model=$(awk -F: '/model name/{print $2; exit}' /proc/cpuinfo 2>/dev/null | sed 's/^ *//')"
echo "cpu.cores=$(nproc 2>/dev/null || echo 1)"
echo "memory.mb=$(awk '/MemTotal/{print int($2/1024)}' /proc/meminfo 2>/dev/null || echo 0)"
echo "virtualization.type=$(systemd-detect-virt 2>/dev/null || echo none)"
echo "container.engine=$(systemd-detect-virt --container 2>/dev/null || echo none)"
echo "system.serial=$(cat /sys/class/dmi/id/product_serial 2>/dev/null || echo unknown)"
echo "system.uuid=$(cat /sys/class/dmi/id/product_uuid 2>/dev/null || echo unknown)"
echo "system.timezone=$(readlink /etc/localtime 2>/dev/null | sed 's#.*/zoneinfo/##' || echo unknown)"
for d in /sys/block/*; do
  name=$(basename "$d")
  case "$name" in loop*|ram*) continue ;; esac
  size=$(cat "$d/size" 2>/dev/null || echo 0)
  echo "disk.$name=$((size*512/1024/1024))"
done
for i in /sys/class/net/*; do
  name=$(basename "$i")
  [ "$name" = "lo" ] && continue
  state=$(cat "$i/operstate" 2>/dev/null || echo unknown)
  echo "interface.$name=$state"
done
`

// Collect runs the probe script against target over transport and parses
// its output into a fact map.
func Collect(ctx context.Context, transport sshtransport.Transport, target sshtransport.Target) (map[string]string, error) {
	result, err := transport.Exec(ctx, target, "sh -c "+shellQuote(probeScript))
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, nixopserrors.New(nixopserrors.KindIO, "hardware facts probe exited non-zero")
	}
	return Parse(result.Stdout), nil
}

// Parse reads "key=value" lines from the probe's output into a map,
// skipping blank lines and anything malformed.
func Parse(output string) map[string]string {
	facts := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}
		key := line[:idx]
		value := line[idx+1:]
		facts[key] = value
	}
	return facts
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
