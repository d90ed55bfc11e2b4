// Package imagespec describes how a Lambda container image is assembled and
// renders the Dockerfile and entrypoint script for it. The entrypoint picks
// between local emulation (runtime interface emulator) and production
// invocation depending on whether the Lambda runtime API is present.
package imagespec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultBaseImage    = "public.ecr.aws/docker/library/python:3.10-slim-bullseye"
	defaultFunctionDir  = "/function"
	defaultHandler      = "handler.handler_function"
	defaultRequirements = "requirements.txt"
	defaultSourceDir    = "lambda_function"
	defaultEmulatorURL  = "https://github.com/aws/aws-lambda-runtime-interface-emulator/releases/latest/download/aws-lambda-rie"

	// EntrypointName is the script the image boots through.
	EntrypointName = "entry.sh"
)

// Spec describes the inputs to a Lambda container image build.
type Spec struct {
	BaseImage        string   `yaml:"base_image"`
	FunctionDir      string   `yaml:"function_dir"`
	SourceDir        string   `yaml:"source_dir"`
	Handler          string   `yaml:"handler"`
	RequirementsFile string   `yaml:"requirements_file"`
	ConfigFile       string   `yaml:"config_file"`
	SystemPackages   []string `yaml:"system_packages"`
	EmulatorURL      string   `yaml:"emulator_url"`
}

// WithDefaults fills unset fields with the values the production image uses.
func (s Spec) WithDefaults() Spec {
	if strings.TrimSpace(s.BaseImage) == "" {
		s.BaseImage = defaultBaseImage
	}
	if strings.TrimSpace(s.FunctionDir) == "" {
		s.FunctionDir = defaultFunctionDir
	}
	if strings.TrimSpace(s.SourceDir) == "" {
		s.SourceDir = defaultSourceDir
	}
	if strings.TrimSpace(s.Handler) == "" {
		s.Handler = defaultHandler
	}
	if strings.TrimSpace(s.RequirementsFile) == "" {
		s.RequirementsFile = defaultRequirements
	}
	if len(s.SystemPackages) == 0 {
		s.SystemPackages = []string{"git"}
	}
	if strings.TrimSpace(s.EmulatorURL) == "" {
		s.EmulatorURL = defaultEmulatorURL
	}
	return s
}

// Validate rejects specs that cannot produce a runnable image.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Handler) == "" {
		return fmt.Errorf("handler cannot be empty")
	}
	if !strings.Contains(s.Handler, ".") {
		return fmt.Errorf("handler %q must name module and function", s.Handler)
	}
	if strings.Contains(s.SourceDir, "..") {
		return fmt.Errorf("source dir %q must stay inside the build context", s.SourceDir)
	}
	return nil
}

// RenderDockerfile produces the image build recipe. Base image and function
// directory stay overridable at build time through build args.
func (s Spec) RenderDockerfile() string {
	s = s.WithDefaults()
	var b strings.Builder
	b.WriteString("# syntax=docker/dockerfile:1\n")
	b.WriteString("ARG BASE_IMAGE=" + s.BaseImage + "\n")
	b.WriteString("FROM ${BASE_IMAGE}\n\n")
	b.WriteString("ARG FUNCTION_DIR=\"" + s.FunctionDir + "\"\n")
	b.WriteString("WORKDIR ${FUNCTION_DIR}\n\n")
	if len(s.SystemPackages) > 0 {
		b.WriteString("RUN apt-get update && apt-get install -y --no-install-recommends " +
			strings.Join(s.SystemPackages, " ") + " && rm -rf /var/lib/apt/lists/*\n\n")
	}
	b.WriteString("COPY " + s.RequirementsFile + " ./\n")
	b.WriteString("RUN pip install --no-cache-dir -r " + s.RequirementsFile + " awslambdaric\n\n")
	if strings.TrimSpace(s.ConfigFile) != "" {
		b.WriteString("COPY " + s.ConfigFile + " ./\n")
	}
	b.WriteString("COPY " + s.SourceDir + "/ ${FUNCTION_DIR}/" + s.SourceDir + "/\n\n")
	b.WriteString("ADD " + s.EmulatorURL + " /usr/local/bin/aws-lambda-rie\n")
	b.WriteString("COPY " + EntrypointName + " /\n")
	b.WriteString("RUN chmod +x /usr/local/bin/aws-lambda-rie /" + EntrypointName + "\n\n")
	b.WriteString("ENTRYPOINT [ \"/" + EntrypointName + "\" ]\n")
	b.WriteString("CMD [ \"" + s.Handler + "\" ]\n")
	return b.String()
}

// RenderEntrypoint produces the boot script. Without AWS_LAMBDA_RUNTIME_API
// in the environment the image is running locally, so the runtime interface
// emulator fronts the handler; in production the runtime client talks to the
// real runtime API directly.
func (s Spec) RenderEntrypoint() string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("if [ -z \"${AWS_LAMBDA_RUNTIME_API}\" ]; then\n")
	b.WriteString("  exec /usr/local/bin/aws-lambda-rie python -m awslambdaric \"$@\"\n")
	b.WriteString("else\n")
	b.WriteString("  exec python -m awslambdaric \"$@\"\n")
	b.WriteString("fi\n")
	return b.String()
}

// Materialize writes the Dockerfile and entrypoint into dir unless the tree
// already ships its own Dockerfile, in which case nothing is generated and
// the repository's recipe wins.
func Materialize(dir string, s Spec) (bool, error) {
	if strings.TrimSpace(dir) == "" {
		return false, fmt.Errorf("build context dir cannot be empty")
	}
	if err := s.Validate(); err != nil {
		return false, err
	}
	has, err := hasDockerfile(dir)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(s.RenderDockerfile()), 0o644); err != nil {
		return false, fmt.Errorf("write dockerfile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, EntrypointName), []byte(s.RenderEntrypoint()), 0o755); err != nil {
		return false, fmt.Errorf("write entrypoint: %w", err)
	}
	return true, nil
}

func hasDockerfile(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read build context: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), "dockerfile") {
			return true, nil
		}
	}
	return false, nil
}
