// Package metrics registers the media gateway's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BlobUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatter",
		Subsystem: "media",
		Name:      "uploads_total",
		Help:      "Blob uploads by result.",
	}, []string{"result"})

	BlobUploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatter",
		Subsystem: "media",
		Name:      "upload_bytes_total",
		Help:      "Bytes accepted by successful uploads.",
	})

	BlobDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatter",
		Subsystem: "media",
		Name:      "downloads_total",
		Help:      "Blob downloads by result.",
	}, []string{"result"})

	BlobDeletes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatter",
		Subsystem: "media",
		Name:      "deletes_total",
		Help:      "Blob deletes by result.",
	}, []string{"result"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatter",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP limiter.",
	})
)

func init() {
	prometheus.MustRegister(BlobUploads, BlobUploadBytes, BlobDownloads, BlobDeletes, RateLimited)
}
