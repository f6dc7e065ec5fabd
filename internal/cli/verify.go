package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/services"
)

// NewVerifyCommand creates the verify command. Without --remote the code is
// looked up in the configured database.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "verify <code>",
		Short: "Check a report verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res services.VerifyResult
				err error
			)
			if remote != "" {
				res, err = NewVerifyClient(remote, opts.log).Verify(cmd.Context(), args[0])
			} else {
				res, err = verifyLocal(cmd.Context(), opts, args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "base URL of a running LabDesk server")
	return cmd
}

func verifyLocal(ctx context.Context, opts *RootOptions, code string) (services.VerifyResult, error) {
	conn, err := opts.openDB()
	if err != nil {
		return services.VerifyResult{}, err
	}
	return services.NewVerificationService(conn, nil).Verify(ctx, code)
}

// VerifyClient calls the public /verify-report endpoint of a server.
type VerifyClient struct {
	http *resty.Client
	log  *zap.Logger
}

// NewVerifyClient creates a client for the server at baseURL.
func NewVerifyClient(baseURL string, log *zap.Logger) *VerifyClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if log == nil {
		log = zap.NewNop()
	}
	return &VerifyClient{http: client, log: log}
}

type remoteError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Verify looks code up remotely. A 400 answer maps to ErrInvalidCodeFormat.
func (c *VerifyClient) Verify(ctx context.Context, code string) (services.VerifyResult, error) {
	var (
		res    services.VerifyResult
		failed remoteError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("code", code).
		SetResult(&res).
		SetError(&failed).
		Get("/verify-report")
	if err != nil {
		c.log.Error("verify request failed", zap.Error(err))
		return services.VerifyResult{}, fmt.Errorf("verify request: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return res, nil
	case http.StatusBadRequest:
		return services.VerifyResult{}, services.ErrInvalidCodeFormat
	default:
		msg := failed.Error
		if msg == "" {
			msg = resp.Status()
		}
		return services.VerifyResult{}, errors.New("verify: server answered " + msg)
	}
}
