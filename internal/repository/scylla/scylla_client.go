package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"auth-bootstrap/internal/config"
	"auth-bootstrap/internal/util"
)

// PreparedStatements holds the statements the profile repository uses.
type PreparedStatements struct {
	CreateProfile  *gocql.Query
	UpdateName     *gocql.Query
	UpdateEmail    *gocql.Query
	UpdatePhone    *gocql.Query
	TouchLastLogin *gocql.Query
	GetProfile     *gocql.Query
}

type ScyllaClient struct {
	Session  *gocql.Session
	config   *config.ScyllaConfig
	Prepared *PreparedStatements
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}
	client.prepareStatements()

	util.Info("Scylla client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (c *ScyllaClient) prepareStatements() {
	// registered_at and last_login use the coordinator clock so devices with
	// skewed clocks cannot pollute the record.
	c.Prepared = &PreparedStatements{
		CreateProfile: c.Session.Query(
			`INSERT INTO profiles (user_id, status, registered_at) VALUES (?, ?, toTimestamp(now())) IF NOT EXISTS`),
		UpdateName: c.Session.Query(
			`UPDATE profiles SET name = ? WHERE user_id = ?`),
		UpdateEmail: c.Session.Query(
			`UPDATE profiles SET email = ? WHERE user_id = ?`),
		UpdatePhone: c.Session.Query(
			`UPDATE profiles SET phone = ? WHERE user_id = ?`),
		TouchLastLogin: c.Session.Query(
			`UPDATE profiles SET last_login = toTimestamp(now()) WHERE user_id = ?`),
		GetProfile: c.Session.Query(
			`SELECT user_id, name, email, phone, status, registered_at, last_login FROM profiles WHERE user_id = ?`),
	}
}

// HealthCheck verifies connectivity with a lightweight system read.
func (c *ScyllaClient) HealthCheck(ctx context.Context) error {
	var release string
	if err := c.Session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Scan(&release); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (c *ScyllaClient) Close() {
	if c.Session != nil {
		c.Session.Close()
		util.Info("Scylla client closed")
	}
}
