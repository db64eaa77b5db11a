package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
)

var extractFlags struct {
	file    string
	apiKey  string
	account string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a handover from a transcript file or stdin and print it as JSON",
	RunE:  runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractFlags.file, "file", "f", "", "Transcript file (default: stdin)")
	f.StringVar(&extractFlags.apiKey, "api-key", "", "API key when no managed key is configured")
	f.StringVar(&extractFlags.account, "account", "", "Account name (default from config)")
}

type extractResult struct {
	Account   string                       `json:"account"`
	ModelUsed string                       `json:"model_used,omitempty"`
	Record    *extractor.Record            `json:"record,omitempty"`
	Failures  []extractor.CandidateFailure `json:"failures,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

var errNoKey = errors.New("no API key: configure the secrets backend or pass --api-key")

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, source, closeSource, err := bootstrap(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer closeSource()

	text, err := readTranscript(cmd.InOrStdin(), extractFlags.file)
	if err != nil {
		return err
	}

	sess := newSessions(cfg, source, slog.Default()).Get("")
	if extractFlags.apiKey != "" {
		if _, err := sess.Resolver.Supply(extractFlags.apiKey); err != nil {
			return err
		}
	}
	cred, ok := sess.Resolver.Resolve(ctx)
	if !ok {
		return errNoKey
	}

	account := extractFlags.account
	if account == "" {
		account = cfg.AccountName
	}

	out := newExtractor(cfg, slog.Default()).Extract(ctx, text, cred)
	res := extractResult{Account: account, ModelUsed: out.ModelUsed, Failures: out.Failures}
	if out.OK() {
		sess.Results.Apply(account, out)
		res.Record = &out.Record
	} else {
		res.Error = out.Err.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return out.Err
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}
