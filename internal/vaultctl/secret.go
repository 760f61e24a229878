package vaultctl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/sbetterfy/internal/client"
	"github.com/dmitrijs2005/sbetterfy/internal/server/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var isTerminal = term.IsTerminal

type secretOptions struct {
	server string
	user   string
}

// newSecretCommand talks to a running server over gRPC, acting as the
// given user with a token signed by the configured secret.
func newSecretCommand(o *options) *cobra.Command {
	so := &secretOptions{}
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Read or write a user's secret through a running server",
	}
	cmd.PersistentFlags().StringVar(&so.server, "server", "", "gRPC address (default: server setting)")
	cmd.PersistentFlags().StringVarP(&so.user, "user", "u", "", "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <field>",
			Short: "Store a secret, read from the terminal or stdin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := o.readSecret(cmd)
				if err != nil {
					return err
				}
				c, err := so.dial(o)
				if err != nil {
					return err
				}
				defer c.Close()
				return c.SaveSecret(cmd.Context(), args[0], value)
			},
		},
		&cobra.Command{
			Use:   "get <field>",
			Short: "Print a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := so.dial(o)
				if err != nil {
					return err
				}
				defer c.Close()
				v, err := c.LoadSecret(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "has <field>",
			Short: "Report whether a secret is set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := so.dial(o)
				if err != nil {
					return err
				}
				defer c.Close()
				set, err := c.HasSecret(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), set)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear <field>",
			Short: "Remove a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := so.dial(o)
				if err != nil {
					return err
				}
				defer c.Close()
				return c.ClearSecret(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func (so *secretOptions) dial(o *options) (*client.GRPCClient, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	addr := so.server
	if addr == "" {
		addr = cfg.EndpointAddrGRPC
	}
	token, err := auth.GenerateToken(so.user, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return client.NewGRPCClient(addr, token)
}

func (o *options) readSecret(cmd *cobra.Command) (string, error) {
	if isTerminal(o.stdinFD) {
		fmt.Fprint(cmd.ErrOrStderr(), "value: ")
		b, err := readPassword(o.stdinFD)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("empty value")
	}
	return line, nil
}
