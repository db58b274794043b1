// Package cloud publishes export artifacts to a NATS broker. Storage
// services (drive, bucket, ...) consume the upload subjects.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"time"

	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/resilience"
	"mercator-hq/scanport/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Message header names set on every upload.
const (
	HeaderUploadID    = "Scanport-Upload-Id"
	HeaderName        = "Scanport-Artifact-Name"
	HeaderFolder      = "Scanport-Folder"
	HeaderService     = "Scanport-Service"
	HeaderItemCount   = "Scanport-Item-Count"
	HeaderContentType = "Content-Type"
)

// ErrInvalidService indicates a service name that is not a valid subject token.
var ErrInvalidService = errors.New("invalid upload service name")

var serviceToken = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Upload is one artifact handed to the cloud sink.
type Upload struct {
	Service   string
	Folder    string
	Name      string
	MIMEType  string
	Content   []byte
	ItemCount int
}

// UploadReceipt confirms a published upload.
type UploadReceipt struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Service    string    `json:"service"`
	Location   string    `json:"location"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Uploader hands artifacts to cloud storage.
type Uploader interface {
	Upload(ctx context.Context, u Upload) (*UploadReceipt, error)
}

// Publisher is the subset of *nats.Conn used by NATSUploader.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
}

// NATSUploader publishes uploads as NATS messages on
// <subject_prefix>.<service>.
type NATSUploader struct {
	conn           Publisher
	closer         func()
	prefix         string
	defaultService string
	timeout        time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
	now            func() time.Time
}

// Dial connects to the broker named in cfg.
func Dial(cfg config.CloudConfig, executor *resilience.Executor, logger *slog.Logger) (*NATSUploader, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultCloudTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "cloud")

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("scanport"),
		nats.Timeout(timeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	u := NewNATSUploader(conn, cfg, executor, logger)
	u.closer = conn.Close
	return u, nil
}

// NewNATSUploader creates an uploader over an existing connection. A nil
// executor publishes without retries.
func NewNATSUploader(conn Publisher, cfg config.CloudConfig, executor *resilience.Executor, logger *slog.Logger) *NATSUploader {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = config.DefaultCloudSubject
	}
	service := cfg.DefaultService
	if service == "" {
		service = config.DefaultCloudService
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultCloudTimeout
	}
	return &NATSUploader{
		conn:           conn,
		prefix:         prefix,
		defaultService: service,
		timeout:        timeout,
		executor:       executor,
		logger:         logger.With("component", "cloud"),
		now:            time.Now,
	}
}

// Ping round-trips to the broker.
func (u *NATSUploader) Ping(ctx context.Context) error {
	timeout := u.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := u.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("nats ping: %w", err)
	}
	return nil
}

// Close closes the broker connection when it was opened by Dial.
func (u *NATSUploader) Close() {
	if u.closer != nil {
		u.closer()
	}
}

// Upload implements Uploader.
func (u *NATSUploader) Upload(ctx context.Context, up Upload) (*UploadReceipt, error) {
	service := up.Service
	if service == "" {
		service = u.defaultService
	}
	if !serviceToken.MatchString(service) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	id := uuid.NewString()
	subject := u.prefix + "." + service

	msg := nats.NewMsg(subject)
	msg.Data = up.Content
	msg.Header.Set(HeaderUploadID, id)
	msg.Header.Set(HeaderName, up.Name)
	msg.Header.Set(HeaderService, service)
	msg.Header.Set(HeaderItemCount, strconv.Itoa(up.ItemCount))
	if up.Folder != "" {
		msg.Header.Set(HeaderFolder, up.Folder)
	}
	if up.MIMEType != "" {
		msg.Header.Set(HeaderContentType, up.MIMEType)
	}

	tracing.Inject(ctx, http.Header(msg.Header))

	call := func(context.Context) error {
		if err := u.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		if err := u.conn.FlushTimeout(u.timeout); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		return nil
	}

	var err error
	if u.executor != nil {
		err = u.executor.Do(ctx, subject, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	receipt := &UploadReceipt{
		ID:         id,
		Subject:    subject,
		Service:    service,
		Location:   fmt.Sprintf("%s/%s", subject, path.Join(up.Folder, up.Name)),
		Size:       int64(len(up.Content)),
		UploadedAt: u.now(),
	}
	u.logger.Info("artifact uploaded",
		"upload_id", id,
		"subject", subject,
		"bytes", receipt.Size,
	)
	return receipt, nil
}

// classifyNATSError retries connection level failures. Any other publish
// error is treated as a rejected message.
func classifyNATSError(err error) resilience.Outcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Ignore
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.Retry
	}
	return resilience.Fail
}
