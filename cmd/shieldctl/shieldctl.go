package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

// usage displays the general usage when the help flag is not displayed and
// and an invalid command was specified.
func usage(errorMessage string) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> <args...>\n\n",
		appName)
	fmt.Fprintln(os.Stderr, showHelpMessage)
	fmt.Fprintln(os.Stderr, listCmdMessage)
}

// rpcRequest is a JSON-RPC request sent to the wallet.
type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

// parseParams converts command line arguments into request parameters.
// Arguments that are valid JSON are sent as is, all others as JSON strings.
// Since some parameters, such as raw blocks, can involve data which is too
// large for the Operating System to allow as a normal command line
// parameter, an argument of '-' is replaced with the next line read from
// stdin.
func parseParams(args []string, stdin io.Reader) ([]json.RawMessage, error) {
	var bio *bufio.Reader
	params := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			if bio == nil {
				bio = bufio.NewReader(stdin)
			}
			line, err := bio.ReadString('\n')
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read data from "+
					"stdin: %v", err)
			}
			if err == io.EOF && len(line) == 0 {
				return nil, errors.New("not enough lines " +
					"provided on stdin")
			}
			arg = strings.TrimRight(line, "\r\n")
		}

		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
			continue
		}
		param, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// formatResult returns the text displayed for a result.  Objects and arrays
// are indented, strings are unquoted and null results display nothing.
func formatResult(result json.RawMessage) (string, error) {
	strResult := string(result)
	switch {
	case strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "["):
		var dst bytes.Buffer
		if err := json.Indent(&dst, result, "", "  "); err != nil {
			return "", fmt.Errorf("failed to format result: %v", err)
		}
		return dst.String(), nil

	case strings.HasPrefix(strResult, `"`):
		var str string
		if err := json.Unmarshal(result, &str); err != nil {
			return "", fmt.Errorf("failed to unmarshal result: %v", err)
		}
		return str, nil

	case strResult == "null" || strResult == "":
		return "", nil
	}
	return strResult, nil
}

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}

	method := "help"
	switch {
	case cfg.ListCommands:
		args = nil
	case len(args) < 1:
		usage("No command specified")
		os.Exit(1)
	default:
		method = args[0]
		args = args[1:]
	}

	params, err := parseParams(args, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Marshal the command into a JSON-RPC byte slice in preparation for
	// sending it to the RPC server.
	marshalledJSON, err := json.Marshal(&rpcRequest{
		Jsonrpc: "1.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Send the JSON-RPC request to the server using the user-specified
	// connection configuration.
	result, err := sendPostRequest(marshalledJSON, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Choose how to display the result based on its type.
	out, err := formatResult(result)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if out != "" {
		fmt.Println(out)
	}
}
