package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
)

var (
	privKeyFile string
	pubKeyFile  string
	blsKeyFile  string
)

// NewKeygenCmd produces a KeygenCmd which creates the client's signing key,
// and optionally a BLS key for a validator.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", filepath.Join(_config.Pool.DataDir, "priv_key"), "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", filepath.Join(_config.Pool.DataDir, "key.pub"), "File where the public key will be written")
	cmd.Flags().StringVar(&blsKeyFile, "bls", "", "File where a BLS multi-signature key will be written, if set")
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", filepath.Dir(privKeyFile))
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return fmt.Errorf("Error generating ECDSA key")
	}

	if err := keys.NewSimpleKeyfile(privKeyFile).WriteKey(key); err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)

	if err := os.MkdirAll(filepath.Dir(pubKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	pub := keys.PublicKeyHex(&key.PublicKey)

	if err := os.WriteFile(pubKeyFile, []byte(pub), 0600); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)

	if blsKeyFile == "" {
		return nil
	}

	blsKey, err := bls.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("Error generating BLS key: %s", err)
	}

	raw, err := bls.DumpPrivateKey(blsKey)
	if err != nil {
		return fmt.Errorf("Writing BLS key: %s", err)
	}

	if err := keys.NewSimpleKeyfile(blsKeyFile).WriteRaw(raw); err != nil {
		return fmt.Errorf("Writing BLS key: %s", err)
	}

	fmt.Printf("Your BLS key has been saved to: %s\n", blsKeyFile)
	fmt.Printf("BLS public key: %s\n", bls.PublicKeyHex(blsKey.PublicKey()))

	return nil
}
