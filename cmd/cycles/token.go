package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/MJE43/stake-cycles/internal/config"
	"github.com/MJE43/stake-cycles/internal/secrets"
)

// runToken handles "token set [value]" and "token clear". set reads the
// token from stdin when no value is given.
func runToken(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	name := fs.String("name", "api", "keychain entry name")
	fallback := fs.String("fallback", config.DefaultTokenFallbackPath(), "file used when no keychain is available")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("expected set or clear")
	}
	tokens := secrets.NewTokenStore(secrets.DefaultService, *fallback)

	switch rest[0] {
	case "set":
		var value string
		if len(rest) > 1 {
			value = rest[1]
		} else {
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("read token: %w", err)
			}
			value = strings.TrimSpace(line)
		}
		if err := tokens.SetToken(*name, value); err != nil {
			return err
		}
		fmt.Fprintf(out, "token %q saved\n", *name)
	case "clear":
		if err := tokens.DeleteToken(*name); err != nil {
			return err
		}
		fmt.Fprintf(out, "token %q cleared\n", *name)
	default:
		return fmt.Errorf("unknown token action %q", rest[0])
	}
	return nil
}
