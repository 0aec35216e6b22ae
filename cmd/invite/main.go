package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/suspectuso/gpt-gateway/internal/config"
	"github.com/suspectuso/gpt-gateway/internal/invite"
)

var botName string

var rootCmd = &cobra.Command{
	Use:   "invite",
	Short: "Issue and check invite codes for the gateway bot",
	Long: `invite signs registration batch payloads with INVITE_SECRET.
A payload can be redeemed by exactly one Telegram account.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint <payload>...",
	Short: "Print an invite code for every payload",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMint,
}

var checkCmd = &cobra.Command{
	Use:   "check <code>",
	Short: "Print the payload behind a code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	mintCmd.Flags().StringVar(&botName, "bot", "", "bot username; prints t.me deep links instead of bare codes")
	rootCmd.AddCommand(mintCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadCodec() (*invite.Codec, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.InviteSecret == "" {
		return nil, fmt.Errorf("INVITE_SECRET is required")
	}
	return invite.NewCodec(cfg.InviteSecret), nil
}

func runMint(cmd *cobra.Command, args []string) error {
	codec, err := loadCodec()
	if err != nil {
		return err
	}

	for _, payload := range args {
		code, err := codec.Encode(payload)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", payload, err)
		}

		if botName != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\thttps://t.me/%s?start=%s\n", payload, botName, code)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", payload, code)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	codec, err := loadCodec()
	if err != nil {
		return err
	}

	payload, ok := codec.Decode(args[0])
	if !ok {
		return fmt.Errorf("invalid code")
	}

	fmt.Fprintln(cmd.OutOrStdout(), payload)
	return nil
}
