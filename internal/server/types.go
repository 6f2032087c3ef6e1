// Package server provides the HTTP job API for avsync.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// AudioBase64 is the optional base64-encoded replacement audio.
	// When omitted the output is silent.
	AudioBase64 string `json:"audio_base64,omitempty" validate:"omitempty,base64"`
	// OutputFormat is the output container: mp4 (default), mov or mkv.
	OutputFormat string `json:"output_format,omitempty" validate:"omitempty,oneof=mp4 mov mkv"`
	// PushToS3 indicates whether to upload the final video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	OutputFormat string `json:"output_format"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Action is the audio reconciliation applied: none, keep, trim or pad.
	Action string `json:"action,omitempty"`
	// Durations are in seconds.
	VideoDuration       float64 `json:"video_duration,omitempty"`
	SourceAudioDuration float64 `json:"source_audio_duration,omitempty"`
	AudioDuration       float64 `json:"audio_duration,omitempty"`
	// VideoBase64 is the base64-encoded video content (if push_to_s3=false and completed).
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL    string     `json:"video_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobSummary is one entry of the job list.
type JobSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
