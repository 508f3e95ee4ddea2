package conf

// Package conf holds the task context: the named parameters and input files
// shared by every stage of a parsing task.

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Context is a parsed task configuration. Parameters are free-form string
// settings; Inputs name the files a task reads (corpora, term maps).
type Context struct {
	Parameters map[string]string `yaml:"parameters"`
	Inputs     map[string]string `yaml:"inputs"`
}

func Read(reader io.Reader) (*Context, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	ctx := &Context{}
	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, err
	}
	if ctx.Parameters == nil {
		ctx.Parameters = make(map[string]string)
	}
	if ctx.Inputs == nil {
		ctx.Inputs = make(map[string]string)
	}
	return ctx, nil
}

func ReadFile(filename string) (*Context, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

// Get returns the parameter value for name, or defaultValue if unset.
func (c *Context) Get(name, defaultValue string) string {
	if value, exists := c.Parameters[name]; exists {
		return value
	}
	return defaultValue
}

// Set overrides a parameter value.
func (c *Context) Set(name, value string) {
	if c.Parameters == nil {
		c.Parameters = make(map[string]string)
	}
	c.Parameters[name] = value
}

// InputFile returns the file path registered for the named input.
func (c *Context) InputFile(name string) (string, error) {
	path, exists := c.Inputs[name]
	if !exists {
		return "", fmt.Errorf("task context has no input named %q", name)
	}
	return path, nil
}

// SetInput registers (or overrides) an input file path.
func (c *Context) SetInput(name, path string) {
	if c.Inputs == nil {
		c.Inputs = make(map[string]string)
	}
	c.Inputs[name] = path
}

func New() *Context {
	return &Context{
		Parameters: make(map[string]string),
		Inputs:     make(map[string]string),
	}
}
