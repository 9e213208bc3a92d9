// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugbundle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// passwordFlag is the argv token prefix that must never appear in a
// debug log. RedactArgv drops every token containing this substring
// and keeps the rest of the joined line.
const passwordFlag = "-Xpass"

// rfc1123Label matches a valid RFC-1123 DNS label: non-empty, at most
// 63 characters, alphanumeric first/last characters, interior
// characters alphanumeric or hyphen.
var rfc1123Label = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// BuildArgv translates params into the collector binary's argument
// vector. Ordering is fixed: the leading arguments, then each
// optional group in the order the fields are documented, emitting
// nothing for unset fields. Returns ErrInvalidParameters if
// K8sNamespace is set but not a valid RFC-1123 label.
func BuildArgv(collectorPath, bundleFilePath string, params Parameters) ([]string, error) {
	argv := []string{
		collectorPath,
		"debug",
		"bundle",
		"--output", bundleFilePath,
		"--verbose",
	}

	if params.Authn != nil {
		argv = append(argv,
			"-Xuser="+params.Authn.Username,
			"-Xpass="+params.Authn.Password,
			"-Xsasl.mechanism="+params.Authn.Mechanism,
		)
	}

	if params.ControllerLogsSizeLimitBytes != nil {
		argv = append(argv, "--controller-logs-size-limit",
			strconv.FormatUint(*params.ControllerLogsSizeLimitBytes, 10)+"B")
	}

	if params.CPUProfilerWaitSeconds != nil {
		argv = append(argv, "--cpu-profiler-wait",
			strconv.FormatUint(*params.CPUProfilerWaitSeconds, 10)+"s")
	}

	if params.LogsSince != nil {
		argv = append(argv, "--logs-since", *params.LogsSince)
	}

	if params.LogsSizeLimitBytes != nil {
		argv = append(argv, "--logs-size-limit",
			strconv.FormatUint(*params.LogsSizeLimitBytes, 10)+"B")
	}

	if params.LogsUntil != nil {
		argv = append(argv, "--logs-until", *params.LogsUntil)
	}

	if params.MetricsIntervalSeconds != nil {
		argv = append(argv, "--metrics-interval",
			strconv.FormatUint(*params.MetricsIntervalSeconds, 10)+"s")
	}

	if len(params.Partition) > 0 {
		argv = append(argv, "--partition", strings.Join(params.Partition, " "))
	}

	if params.TLSEnabled != nil {
		argv = append(argv, "-Xtls.enabled="+strconv.FormatBool(*params.TLSEnabled))
	}

	if params.TLSInsecureSkipVerify != nil {
		argv = append(argv, "-Xtls.insecure_skip_verify="+strconv.FormatBool(*params.TLSInsecureSkipVerify))
	}

	if params.K8sNamespace != nil {
		if !rfc1123Label.MatchString(*params.K8sNamespace) {
			return nil, fmt.Errorf("%w: k8s_namespace %q is not a valid RFC-1123 label",
				ErrInvalidParameters, *params.K8sNamespace)
		}
		argv = append(argv, "--namespace", *params.K8sNamespace)
	}

	return argv, nil
}

// RedactArgv joins argv with spaces, dropping any token that contains
// the password flag substring entirely rather than masking it — a
// masked token beginning with passwordFlag would itself match the
// "no substring beginning with -Xpass" requirement it exists to
// satisfy. Use this for debug logging; never log the raw argv.
func RedactArgv(argv []string) string {
	kept := make([]string, 0, len(argv))
	for _, token := range argv {
		if strings.Contains(token, passwordFlag) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
