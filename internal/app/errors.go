package app

import (
	"errors"

	"docrag/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	ErrDocumentNotFound    = repository.ErrDocumentNotFound
	ErrFileTooLarge        = errors.New("file exceeds the upload limit")
	ErrEmptyFile           = errors.New("file is empty")
	ErrIngestionInProgress = errors.New("document ingestion already in progress")
	ErrIngestionFailed     = errors.New("document ingestion failed")

	ErrRetrieval    = errors.New("retrieval failed")
	ErrEmptyMessage = errors.New("conversation has no user message")
)
