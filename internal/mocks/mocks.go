// Package mocks holds shared mock clients for tests that span packages.
package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// MockSSMAPI is a mock implementation of the session.SSMAPI interface
type MockSSMAPI struct {
	DescribeInstanceInformationFunc func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error)
	SendCommandFunc                 func(input *ssm.SendCommandInput) (*ssm.SendCommandOutput, error)
	GetCommandInvocationFunc        func(input *ssm.GetCommandInvocationInput) (*ssm.GetCommandInvocationOutput, error)
}

func (m *MockSSMAPI) DescribeInstanceInformation(_ context.Context, input *ssm.DescribeInstanceInformationInput, _ ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	return m.DescribeInstanceInformationFunc(input)
}

func (m *MockSSMAPI) SendCommand(_ context.Context, input *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	return m.SendCommandFunc(input)
}

func (m *MockSSMAPI) GetCommandInvocation(_ context.Context, input *ssm.GetCommandInvocationInput, _ ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error) {
	return m.GetCommandInvocationFunc(input)
}

// MockStorageAPI is a mock implementation of the session.StorageAPI interface
type MockStorageAPI struct {
	PutObjectFunc               func(input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	GetObjectFunc               func(input *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	DeleteObjectFunc            func(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	UploadPartFunc              func(input *s3.UploadPartInput) (*s3.UploadPartOutput, error)
	CreateMultipartUploadFunc   func(input *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUploadFunc func(input *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(input *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error)
}

func (m *MockStorageAPI) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(input)
}

func (m *MockStorageAPI) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(input)
}

func (m *MockStorageAPI) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return m.DeleteObjectFunc(input)
}

func (m *MockStorageAPI) UploadPart(_ context.Context, input *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return m.UploadPartFunc(input)
}

func (m *MockStorageAPI) CreateMultipartUpload(_ context.Context, input *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return m.CreateMultipartUploadFunc(input)
}

func (m *MockStorageAPI) CompleteMultipartUpload(_ context.Context, input *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return m.CompleteMultipartUploadFunc(input)
}

func (m *MockStorageAPI) AbortMultipartUpload(_ context.Context, input *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return m.AbortMultipartUploadFunc(input)
}
