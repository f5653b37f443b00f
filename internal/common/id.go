package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique training job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewDatasetID generates a unique dataset ID with the "ds_" prefix
// Format: ds_<uuid>
func NewDatasetID() string {
	return "ds_" + uuid.New().String()
}

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewSubscriberID generates a unique hub subscriber ID with the "sub_" prefix
// Format: sub_<uuid>
func NewSubscriberID() string {
	return "sub_" + uuid.New().String()
}
