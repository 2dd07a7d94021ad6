package install

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/pipeline"
	"github.com/milkyapps/llvmgr/internal/progress"
)

// ErrUnknownRecipe is returned for name/version pairs with no recipe.
var ErrUnknownRecipe = errors.New("install: unknown recipe")

// DefaultBaseURL is the LLVM project on GitHub.
const DefaultBaseURL = "https://github.com/llvm/llvm-project"

// Env is what a recipe runs against.
type Env struct {
	Cache    *cache.Cache
	Registry *progress.Registry
	Builder  Builder

	// Pipeline configures downloads. CacheRoot is always the cache root.
	Pipeline pipeline.Options

	// BaseURL replaces DefaultBaseURL.
	BaseURL string

	// Jobs is the parallelism passed to multi-config generators.
	// Default: runtime.NumCPU()
	Jobs int

	Logger *zap.Logger
}

func (e *Env) defaults() {
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	e.BaseURL = strings.TrimRight(e.BaseURL, "/")
	if e.Jobs <= 0 {
		e.Jobs = runtime.NumCPU()
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	e.Pipeline.CacheRoot = e.Cache.Root()
	if e.Pipeline.Logger == nil {
		e.Pipeline.Logger = e.Logger
	}
}

// Recipe installs one tool version.
type Recipe struct {
	Name    string
	Version string

	// Release is the full upstream version that gets installed.
	Release string

	// EnvVar is set to the install prefix in the shell file.
	EnvVar string

	run func(ctx context.Context, env *Env, r *Recipe) error
}

var recipes = []*Recipe{
	{Name: "llvm", Version: "16", Release: "16.0.1", EnvVar: "LLVM_SYS_160_PREFIX", run: installSplitSources},
	{Name: "llvm", Version: "17", Release: "17.0.6", EnvVar: "LLVM_SYS_170_PREFIX", run: installMonorepo},
	{Name: "llvm", Version: "18", Release: "18.1.2", EnvVar: "LLVM_SYS_180_PREFIX", run: installMonorepo},
}

// Recipes lists every known recipe, sorted by name and version.
func Recipes() []*Recipe {
	out := append([]*Recipe(nil), recipes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		a, _ := strconv.Atoi(out[i].Version)
		b, _ := strconv.Atoi(out[j].Version)
		return a < b
	})
	return out
}

// Lookup finds the recipe for name and version.
func Lookup(name, version string) (*Recipe, error) {
	for _, r := range recipes {
		if r.Name == name && (r.Version == version || r.Release == version) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownRecipe, name, version)
}

// Prefix is where the recipe installs inside c.
func (r *Recipe) Prefix(c *cache.Cache) string {
	return c.Path(r.Release)
}

// Run installs r.
func (r *Recipe) Run(ctx context.Context, env *Env) error {
	env.defaults()
	env.Logger.Info("installing", zap.String("name", r.Name), zap.String("release", r.Release))
	return r.run(ctx, env, r)
}

// Run looks up and runs the recipe for name and version.
func Run(ctx context.Context, env *Env, name, version string) error {
	r, err := Lookup(name, version)
	if err != nil {
		return err
	}
	return r.Run(ctx, env)
}

func isMultiConfig(generator string) bool {
	return strings.Contains(generator, "Visual Studio")
}
