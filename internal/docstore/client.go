// Package docstore keeps transactions and handoff orders in Firestore, for
// deployments that run without Postgres.
package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colTransactions = "transactions"
	colBuyers       = "buyers"
	colOrders       = "orders"
)

// NewClient opens a Firestore client. An empty credentialsFile falls back
// to application default credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client (project=%s): %w", projectID, err)
	}
	return c, nil
}

// Ping lists root collections; Firestore has no cheaper liveness call.
func Ping(ctx context.Context, c *firestore.Client) error {
	_, err := c.Collections(ctx).GetAll()
	return err
}

func notFound(err error) bool { return status.Code(err) == codes.NotFound }
