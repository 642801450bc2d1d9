package handlers

import (
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/response"
)

// ErrorResponse is the body of non-2xx POS API answers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UnknownStatusResponse is returned for an orderRef without an attempt.
type UnknownStatusResponse struct {
	Status string `json:"status" example:"UNKNOWN"`
}

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespListAttempts wraps ListAttemptsResponse in the standard envelope.
type RespListAttempts struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListAttemptsResponse     `json:"data"`
}

// RespStatistic wraps StatisticResponse in the standard envelope.
type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}

// RespAttempt wraps a single AttemptItem in the standard envelope.
type RespAttempt struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    AttemptItem              `json:"data"`
}

// RespWebhookEvents wraps webhook audit records in the standard envelope.
type RespWebhookEvents struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.WebhookEvent    `json:"data"`
}
