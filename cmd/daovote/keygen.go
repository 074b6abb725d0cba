package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
)

func keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "generates a wallet key for the dashboard session",
		RunE: func(_ *cobra.Command, _ []string) error {
			signer := ethereum.NewSignKeys()
			if err := signer.Generate(); err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			pub, priv := signer.HexString()
			fmt.Printf("address:    %s\npublic key: %s\nprivkey:    %s\n", signer.AddressString(), pub, priv)
			return nil
		},
	}
}
