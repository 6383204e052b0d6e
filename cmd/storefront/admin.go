package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/revolutionai/storefront/internal/adminkey"
	"github.com/spf13/cobra"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin API key tools",
	}
	cmd.AddCommand(adminHashKeyCmd())
	return cmd
}

func adminHashKeyCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Generate an admin key and print its ADMIN_API_KEY_HASH",
		Long: `Generate a new admin API key and its Argon2id hash.

Store the hash in ADMIN_API_KEY_HASH and hand the key to the operator.
The key is shown once and cannot be recovered from the hash. Use --stdin
to hash an existing key instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = strings.TrimSpace(line)
				if key == "" {
					return errors.New("empty key on stdin")
				}
			} else {
				generated, err := adminkey.Generate()
				if err != nil {
					return err
				}
				key = generated
			}

			hash, err := adminkey.Hash(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !fromStdin {
				fmt.Fprintf(out, "key:  %s\n", key)
			}
			fmt.Fprintf(out, "ADMIN_API_KEY_HASH=%s\n", hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "hash a key read from stdin")
	return cmd
}
