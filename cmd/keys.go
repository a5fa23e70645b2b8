package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// keys generates the securecookie key pair shared by the admin and
// scheduling session cookies. Output is shell-ready export lines.
func newKeysCmd() *cobra.Command {
	var size int

	c := &cobra.Command{
		Use:   "keys",
		Short: "Generate base64 values for COOKIE_HASH_KEY and COOKIE_BLOCK_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			// block key doubles as the AES key
			if size != 16 && size != 24 && size != 32 {
				return fmt.Errorf("--size must be 16, 24 or 32")
			}
			for _, name := range []string{"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY"} {
				key := make([]byte, size)
				if _, err := rand.Read(key); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "export %s=%s\n", name, base64.StdEncoding.EncodeToString(key))
			}
			return nil
		},
	}

	c.Flags().IntVar(&size, "size", 32, "key length in bytes (16, 24 or 32)")
	return c
}
