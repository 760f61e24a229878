package vaultctl

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/server/auth"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/server/services"
	"github.com/spf13/cobra"
)

func newBackupCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload a ciphertext-only snapshot to the backup bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cfg, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			b, err := d.NewBackupService(cmd.Context(), cfg, o.logger())
			if err != nil {
				return err
			}
			key, err := b.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s\n", cfg.S3Bucket, key)
			return nil
		},
	}
}

func newTokenCommand(o *options) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.AccessTokenValidityDuration
			}
			token, err := auth.GenerateToken(args[0], []byte(cfg.SecretKey), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: server setting)")
	return cmd
}

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show which secrets a user has set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			w := cmd.OutOrStdout()
			for _, f := range models.SecretFields {
				set, err := d.Vault.HasField(cmd.Context(), args[0], f)
				if err != nil {
					return err
				}
				state := "unset"
				if set {
					state = "set"
				}
				fmt.Fprintf(w, "%-24s %s\n", f, state)
			}
			return nil
		},
	}
}

func newForgetCommand(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "forget <user-id>",
		Short: "Delete a user's key and secrets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this permanently destroys the secrets of %s, pass --yes to confirm", args[0])
			}
			d, _, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			if err := d.Vault.ForgetUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newProvisionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <user-id>",
		Short: "Create a user's key ahead of the first secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			if err := d.Vault.ProvisionUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			c, err := d.Vault.UserCipher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key %s\n", args[0], c.KeyFingerprint())
			return nil
		},
	}
}

// spotifyAuthOptions is extended in tests.
var spotifyAuthOptions []services.SpotifyAuthOption

func newSpotifyTokenCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "spotify-token <user-id>",
		Short: "Print a valid Spotify access token, refreshing it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cfg, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			sp := services.NewSpotifyAuthService(d.Vault, cfg.SpotifyRedirectURL, o.logger(), spotifyAuthOptions...)
			ts, err := sp.TokenSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tok, err := ts.Token()
			if err != nil {
				return fmt.Errorf("spotify token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			if !tok.Expiry.IsZero() {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Expiry.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}
