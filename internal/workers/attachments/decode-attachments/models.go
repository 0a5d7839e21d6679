// internal/workers/attachments/decode-attachments/models.go
package decodeattachments

import "app-deployer/internal/models"

// Kind classifies an attachment digest.
type Kind string

const (
	KindTabular      Kind = "tabular"
	KindMapping      Kind = "mapping"
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindDatabase     Kind = "database"
	KindUnrecognized Kind = "unrecognized"
	KindUnavailable  Kind = "unavailable"
)

type Input struct {
	Attachments []models.Attachment `json:"attachments"`
	// ScratchDir receives decoded payloads. The caller owns and removes it.
	ScratchDir string `json:"scratchDir"`
}

type Output struct {
	Digests []Digest     `json:"digests"`
	Images  []ImagePart  `json:"images,omitempty"`
	Files   []StoredFile `json:"files,omitempty"`
}

// Digest is a bounded summary of one attachment. It never carries the payload.
type Digest struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	MediaType string `json:"mediaType,omitempty"`
	Size      int    `json:"size"`
	Summary   string `json:"summary"`
	// Method names the text extraction used for images.
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ImagePart is an image kept verbatim for multimodal generation.
type ImagePart struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	DataURI   string `json:"dataUri"`
}

// StoredFile is a decoded attachment written to the scratch directory.
type StoredFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// File is the decoded attachment handed to a Digester.
type File struct {
	Name      string
	MediaType string
	Path      string
	Data      []byte
}
