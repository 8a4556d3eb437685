// Package s3store is the optional secondary cache tier: a best-effort
// mirror of cache objects in S3, composed beneath internal/diskstore by
// internal/tiered. Adapted from the teacher daemon's internal/cache/s3.go,
// generalized from OCI blob/manifest keys to the generic cache key model.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cacheerr"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/metrics"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// S3Store mirrors cache objects into an S3 bucket under a configurable
// key prefix. Every object is three keys: "<prefix><hash>" (body),
// "<prefix><hash>.meta" and "<prefix><hash>.hdr" (the meta sidecars).
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	metrics *metrics.Cache
}

// New resolves AWS credentials and region via the standard SDK default
// chain (env vars, shared config, instance profile) and returns a store
// targeting bucket/prefix.
func New(ctx context.Context, bucket, prefix string, forcePathStyle bool, m *metrics.Cache) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, cacheerr.Internal("load AWS config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix, metrics: m}, nil
}

func (s *S3Store) bodyKey(hash string) string { return s.prefix + hash }
func (s *S3Store) metaKey(hash string) string { return s.prefix + hash + ".meta" }
func (s *S3Store) hdrKey(hash string) string  { return s.prefix + hash + ".hdr" }

// Lookup fetches meta, hdr and body from S3. A "not found" response from
// any of the three GetObject calls is a miss, not an error.
func (s *S3Store) Lookup(ctx context.Context, key *cachekey.Key) (*cachemeta.Meta, storage.HitHandler, error) {
	hash := key.Combined()

	metaOut, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.metaKey(hash))})
	if err != nil {
		if isNotFound(err) {
			s.metrics.Misses.Inc()
			return nil, nil, nil
		}
		return nil, nil, cacheerr.Internal("get s3 meta", err)
	}
	defer metaOut.Body.Close()
	metaData, err := io.ReadAll(metaOut.Body)
	if err != nil {
		return nil, nil, cacheerr.Internal("read s3 meta", err)
	}

	hdrOut, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.hdrKey(hash))})
	if err != nil {
		if isNotFound(err) {
			s.metrics.Misses.Inc()
			return nil, nil, nil
		}
		return nil, nil, cacheerr.Internal("get s3 hdr", err)
	}
	defer hdrOut.Body.Close()
	hdrData, err := io.ReadAll(hdrOut.Body)
	if err != nil {
		return nil, nil, cacheerr.Internal("read s3 hdr", err)
	}

	meta, err := cachemeta.Deserialize(metaData, hdrData)
	if err != nil {
		return nil, nil, cacheerr.Internal("decode s3 meta", err)
	}

	bodyOut, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.bodyKey(hash))})
	if err != nil {
		if isNotFound(err) {
			s.metrics.Misses.Inc()
			return nil, nil, nil
		}
		return nil, nil, cacheerr.Internal("get s3 body", err)
	}

	size := int64(-1)
	if bodyOut.ContentLength != nil {
		size = *bodyOut.ContentLength
	}

	s.metrics.LookupHits.Inc()
	return meta, newHitHandler(bodyOut.Body, size, s.metrics), nil
}

// GetMissHandler returns a handler that buffers body bytes in memory and
// uploads all three objects to S3 on Finish. Unlike the disk tier, S3
// offers no rename-based atomic publish primitive cheaply usable for
// streaming uploads, so buffering is the simplest correct strategy for a
// best-effort secondary tier.
func (s *S3Store) GetMissHandler(_ context.Context, key *cachekey.Key, meta *cachemeta.Meta) (storage.MissHandler, error) {
	metaInternal, metaHeader, err := cachemeta.Serialize(meta)
	if err != nil {
		return nil, cacheerr.Internal("encode s3 meta", err)
	}
	return &missHandler{
		store:        s,
		hash:         key.Combined(),
		metaInternal: metaInternal,
		metaHeader:   metaHeader,
	}, nil
}

// Purge removes all three objects for key. S3 has no single "directory
// delete," so DeleteObject is issued against each key independently;
// existed reports whether the body object was present. purgeType is
// transparent here, same as at the disk tier: branching on eviction vs
// invalidation is the tiered store's responsibility, not this one's.
func (s *S3Store) Purge(ctx context.Context, key *cachekey.CompactKey, _ storage.PurgeType) (bool, error) {
	hash := key.Combined()

	_, headErr := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.bodyKey(hash))})
	existed := headErr == nil

	for _, k := range []string{s.bodyKey(hash), s.metaKey(hash), s.hdrKey(hash)} {
		_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)})
	}

	if existed {
		s.metrics.Evictions.Inc()
	}
	return existed, nil
}

// UpdateMeta overwrites the meta/hdr sidecar objects in place.
func (s *S3Store) UpdateMeta(ctx context.Context, key *cachekey.Key, meta *cachemeta.Meta) (bool, error) {
	hash := key.Combined()

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.bodyKey(hash))}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, cacheerr.Internal("head s3 body", err)
	}

	metaInternal, metaHeader, err := cachemeta.Serialize(meta)
	if err != nil {
		return false, cacheerr.Internal("encode s3 meta", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.metaKey(hash)), Body: bytes.NewReader(metaInternal),
	}); err != nil {
		return false, cacheerr.Internal("put s3 meta", err)
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.hdrKey(hash)), Body: bytes.NewReader(metaHeader),
	}); err != nil {
		return false, cacheerr.Internal("put s3 hdr", err)
	}
	return true, nil
}

// upload is called by missHandler.Finish once the full body is buffered.
func (s *S3Store) upload(ctx context.Context, hash string, body []byte, metaInternal, metaHeader []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.bodyKey(hash)),
		Body:   bytes.NewReader(body),
	},
		s3.WithAPIOptions(func(stack *middleware.Stack) error {
			return v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware(stack)
		}),
	)
	if err != nil {
		return fmt.Errorf("putting body to s3: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.metaKey(hash)), Body: bytes.NewReader(metaInternal),
	}); err != nil {
		return fmt.Errorf("putting meta to s3: %w", err)
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.hdrKey(hash)), Body: bytes.NewReader(metaHeader),
	}); err != nil {
		return fmt.Errorf("putting hdr to s3: %w", err)
	}

	slog.Debug("s3 object published", "key", hash)
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
