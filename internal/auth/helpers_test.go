package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

func statusFor(err error) int {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus
	}
	return fiber.StatusInternalServerError
}
