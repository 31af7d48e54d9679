package aws

import (
	"errors"
	"fmt"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	iottypes "github.com/aws/aws-sdk-go-v2/service/iot/types"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/picklr-io/ggprov/providers/iot"
)

var notFoundCodes = map[string]bool{
	"ResourceNotFoundException": true,
	"NoSuchEntity":              true,
	"ParameterNotFound":         true,
	"NotFoundException":         true,
}

var alreadyExistsCodes = map[string]bool{
	"ResourceAlreadyExistsException": true,
	"EntityAlreadyExists":            true,
	"ResourceExistsException":        true,
	"ParameterAlreadyExists":         true,
}

var conflictCodes = map[string]bool{
	"DeleteConflictException": true,
	"DeleteConflict":          true,
}

// classify maps SDK errors onto iot.ErrNotFound, iot.ErrAlreadyExists and
// iot.ErrConflict, keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		iotNotFound *iottypes.ResourceNotFoundException
		iotExists   *iottypes.ResourceAlreadyExistsException
		iamNotFound *iamtypes.NoSuchEntityException
		iamExists   *iamtypes.EntityAlreadyExistsException
		ssmNotFound *ssmtypes.ParameterNotFound
		smNotFound  *smtypes.ResourceNotFoundException
		smExists    *smtypes.ResourceExistsException
	)
	switch {
	case errors.As(err, &iotNotFound), errors.As(err, &iamNotFound),
		errors.As(err, &ssmNotFound), errors.As(err, &smNotFound):
		return fmt.Errorf("%w: %w", iot.ErrNotFound, err)
	case errors.As(err, &iotExists), errors.As(err, &iamExists), errors.As(err, &smExists):
		return fmt.Errorf("%w: %w", iot.ErrAlreadyExists, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch {
		case notFoundCodes[ae.ErrorCode()]:
			return fmt.Errorf("%w: %w", iot.ErrNotFound, err)
		case alreadyExistsCodes[ae.ErrorCode()]:
			return fmt.Errorf("%w: %w", iot.ErrAlreadyExists, err)
		case conflictCodes[ae.ErrorCode()]:
			return fmt.Errorf("%w: %w", iot.ErrConflict, err)
		}
	}
	return err
}
