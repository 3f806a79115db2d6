package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = "synctool.cue"

// EnvFile names the environment variable that overrides DefaultFile.
const EnvFile = "SYNCTOOL_CONFIG"

// ResolvePath returns path, or the EnvFile override, or DefaultFile.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvFile); env != "" {
		return env
	}
	return DefaultFile
}

// Load reads a configuration from a .cue, .json, .yaml or .yml file, or
// from a directory holding a CUE package.
func Load(path string) (*Configuration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeLoad, Message: fmt.Sprintf("configuration not found: %v", err)}
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		v, err = loadDir(ctx, path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, &Error{Code: ErrCodeLoad, Message: fmt.Sprintf("reading configuration: %v", err)}
		}
		v, err = compileBytes(ctx, path, data)
	}
	if err != nil {
		return nil, err
	}
	return build(ctx, v)
}

// LoadBytes parses configuration content. The filename extension selects
// the format; anything but .yaml and .yml is read as CUE, which includes JSON.
func LoadBytes(filename string, data []byte) (*Configuration, error) {
	ctx := cuecontext.New()
	v, err := compileBytes(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	return build(ctx, v)
}

func compileBytes(ctx *cue.Context, filename string, data []byte) (cue.Value, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return cue.Value{}, cueError(ErrCodeLoad, err)
		}
		v := ctx.BuildFile(f)
		if err := v.Err(); err != nil {
			return cue.Value{}, cueError(ErrCodeLoad, err)
		}
		return v, nil
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return cue.Value{}, cueError(ErrCodeLoad, err)
	}
	return v, nil
}

func loadDir(ctx *cue.Context, dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &Error{Code: ErrCodeLoad, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, cueError(ErrCodeLoad, inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, cueError(ErrCodeLoad, err)
	}
	return v, nil
}

// build unifies v with the embedded schema and compiles the result.
func build(ctx *cue.Context, v cue.Value) (*Configuration, error) {
	schemaVal := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("embedded schema: %w", err)
	}
	unified := schemaVal.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}
	return compile(unified)
}

// cueError converts the first CUE error into an Error with its position.
func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	ce := &Error{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	if len(errs) > 1 {
		ce.Message = fmt.Sprintf("%s (and %d more errors)", ce.Message, len(errs)-1)
	}
	return ce
}
