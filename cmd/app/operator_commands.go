package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/marketsync/cmd/app/commands"
	authService "github.com/allisson/marketsync/internal/auth/service"
)

func getOperatorCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "hash-operator-token",
			Usage: "Hash an operator API token for OPERATOR_TOKEN_HASH (generates one when omitted)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "token",
					Aliases: []string{"t"},
					Usage:   "Plain operator token to hash",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunHashOperatorToken(
					authService.NewOperatorTokenService(),
					commands.DefaultIO().Writer,
					cmd.String("token"),
				)
			},
		},
		{
			Name:  "encrypt-remote-token",
			Usage: "Encrypt the remote API token with KMS for REMOTE_API_TOKEN_CIPHERTEXT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "token",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Plain remote API token",
				},
				&cli.StringFlag{
					Name:    "kms-key-uri",
					Aliases: []string{"k"},
					Sources: cli.EnvVars("KMS_KEY_URI"),
					Usage:   "KMS key URI (gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunEncryptRemoteToken(
					ctx,
					commands.DefaultIO().Writer,
					cmd.String("token"),
					cmd.String("kms-key-uri"),
				)
			},
		},
	}
}
