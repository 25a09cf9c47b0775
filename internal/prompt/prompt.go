package prompt

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh/terminal"
)

// SeedLen is the length in bytes of a wallet generation seed.
const SeedLen = 32

// KeyMaterial is what the user chose to create a wallet from.  Exactly one
// field is set.
type KeyMaterial struct {
	Seed        []byte
	SpendingKey string
	ViewingKey  string
}

// readSecret reads a line from the terminal without echoing it.
var readSecret = func() ([]byte, error) {
	return terminal.ReadPassword(int(os.Stdin.Fd()))
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string, defaultEntry string) (string, error) {
	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// promptListBool prompts the user for a boolean (yes/no) with the given prefix.
// The function will repeat the prompt to the user until they enter a valid
// reponse.
func promptListBool(reader *bufio.Reader, prefix string, defaultEntry string) (bool, error) {
	// Setup the valid responses.
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// promptLine prompts the user until a non-empty line is entered.
func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	for {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

// promptSecret prompts the user for a value that is not echoed, repeating
// the prompt until a non-empty value is entered.
func promptSecret(prompt string) (string, error) {
	for {
		fmt.Print(prompt)
		secret, err := readSecret()
		if err != nil {
			return "", err
		}
		fmt.Print("\n")
		secret = bytes.TrimSpace(secret)
		if len(secret) == 0 {
			continue
		}
		return string(secret), nil
	}
}

// Keys prompts the user for the key material of a new wallet.  The wallet
// may be created from a freshly generated seed, an existing seed, an
// existing spending key, or a viewing key alone, in which case it is
// view-only.  All prompts are repeated until the user enters a valid
// response.
func Keys(reader *bufio.Reader) (*KeyMaterial, error) {
	choice, err := promptList(reader, "Create the wallet from a new "+
		"seed, an existing seed, a spending key or a viewing key?",
		[]string{"new", "seed", "spendingkey", "viewingkey"}, "new")
	if err != nil {
		return nil, err
	}

	switch choice {
	case "seed":
		seed, err := existingSeed(reader)
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{Seed: seed}, nil

	case "spendingkey":
		extsk, err := promptSecret("Enter the extended spending key: ")
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{SpendingKey: extsk}, nil

	case "viewingkey":
		fmt.Println("A wallet created from a viewing key can not " +
			"create transactions until its spending key is loaded.")
		extfvk, err := promptLine(reader, "Enter the extended "+
			"full viewing key: ")
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{ViewingKey: extfvk}, nil
	}

	seed, err := newSeed(reader)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{Seed: seed}, nil
}

// newSeed generates a seed and displays it, waiting for the user to confirm
// it has been stored.
func newSeed(reader *bufio.Reader) ([]byte, error) {
	seed := make([]byte, SeedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}

	fmt.Println("Your wallet generation seed is:")
	fmt.Printf("%x\n", seed)
	fmt.Println("IMPORTANT: Keep the seed in a safe place as you\n" +
		"will NOT be able to restore your wallet without it.")
	fmt.Println("Please keep in mind that anyone who has access\n" +
		"to the seed can also restore your wallet thereby\n" +
		"giving them access to all your funds, so it is\n" +
		"imperative that you keep it in a secure location.")

	for {
		fmt.Print(`Once you have stored the seed in a safe ` +
			`and secure location, enter "OK" to continue: `)
		confirmSeed, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		confirmSeed = strings.TrimSpace(confirmSeed)
		confirmSeed = strings.Trim(confirmSeed, `"`)
		if confirmSeed == "OK" {
			break
		}
	}
	return seed, nil
}

// existingSeed prompts for a hex encoded seed until a valid one is entered.
func existingSeed(reader *bufio.Reader) ([]byte, error) {
	for {
		fmt.Print("Enter existing wallet seed: ")
		seedStr, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		seedStr = strings.TrimSpace(strings.ToLower(seedStr))

		seed, err := hex.DecodeString(seedStr)
		if err != nil || len(seed) != SeedLen {
			fmt.Printf("Invalid seed specified.  Must be a "+
				"hexadecimal value of %d bits\n", SeedLen*8)
			continue
		}

		return seed, nil
	}
}

// Birthday prompts the user for the height the wallet was created at.
// Syncing starts from the closest checkpoint below it, so a wallet restored
// from existing keys should use the height of its first transaction.  An
// empty response selects defaultHeight.
func Birthday(reader *bufio.Reader, defaultHeight int32) (int32, error) {
	prompt := fmt.Sprintf("Enter the wallet birthday height [%d]: ",
		defaultHeight)
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return defaultHeight, nil
		}

		height, err := strconv.ParseInt(reply, 10, 32)
		if err != nil || height < 0 {
			fmt.Println("Invalid height specified")
			continue
		}
		return int32(height), nil
	}
}

// Confirm asks the user a yes/no question, defaulting to no.
func Confirm(reader *bufio.Reader, question string) (bool, error) {
	return promptListBool(reader, question, "no")
}
