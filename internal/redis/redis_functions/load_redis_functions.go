package redis_functions

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

var ErrMissingLibraryName = errors.New("lua library has no #!lua name= header")

// libraryName reads the library name from the shebang line Redis requires on
// every FUNCTION LOAD payload.
func libraryName(code string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(code))
	if !sc.Scan() {
		return "", ErrMissingLibraryName
	}
	for _, field := range strings.Fields(strings.TrimPrefix(sc.Text(), "#!lua")) {
		if name, ok := strings.CutPrefix(field, "name="); ok && name != "" {
			return name, nil
		}
	}
	return "", ErrMissingLibraryName
}

// LoadAll loads or replaces every embedded Lua library in Redis.
func LoadAll(ctx context.Context, rdb redis.Cmdable) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		want, err := libraryName(string(code))
		if err != nil {
			return fmt.Errorf("lua %s: %w", f.Name(), err)
		}
		got, err := rdb.FunctionLoadReplace(ctx, string(code)).Result()
		if err != nil {
			return fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		if got != want {
			zap.L().Warn("redis_functions.name_mismatch", zap.String("file", f.Name()),
				zap.String("want", want), zap.String("got", got))
		}
		zap.L().Info("lua function loaded", zap.String("file", f.Name()), zap.String("library", got))
	}
	return nil
}
