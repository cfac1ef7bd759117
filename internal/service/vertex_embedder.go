package service

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexEmbedder uses a Vertex AI text embedding model (text-embedding-005 by
// default) through the prediction API.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
	taskType string
}

// VertexOptions locates the Vertex AI project.
type VertexOptions struct {
	ProjectID       string
	Location        string
	Model           string
	CredentialsFile string
}

func (o VertexOptions) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	return opts
}

// NewVertexEmbedder creates a new embedder using the service account credentials
func NewVertexEmbedder(ctx context.Context, o VertexOptions) (*VertexEmbedder, error) {
	if o.ProjectID == "" {
		return nil, fmt.Errorf("GCP project id is required for Vertex embeddings")
	}
	if o.Location == "" {
		o.Location = "us-central1"
	}
	if o.Model == "" {
		o.Model = "text-embedding-005"
	}

	opts := append(o.clientOptions(), option.WithEndpoint(o.Location+"-aiplatform.googleapis.com:443"))
	client, err := aiplatform.NewPredictionClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexEmbedder{
		client:   client,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", o.ProjectID, o.Location, o.Model),
		taskType: "SEMANTIC_SIMILARITY",
	}, nil
}

// Embed generates an embedding vector for the input text. Code chunks and
// rule descriptions are compared symmetrically, so both use SEMANTIC_SIMILARITY.
func (v *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	instance, err := structpb.NewStruct(map[string]interface{}{
		"content":   text,
		"task_type": v.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  v.endpoint,
		Instances: []*structpb.Value{structpb.NewStructValue(instance)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("no predictions returned")
	}

	prediction := resp.Predictions[0].GetStructValue()
	embeddings := prediction.GetFields()["embeddings"].GetStructValue()
	values := embeddings.GetFields()["values"].GetListValue().GetValues()

	result := make([]float32, len(values))
	for i, v := range values {
		result[i] = float32(v.GetNumberValue())
	}

	return result, nil
}

// Close releases the Vertex AI client resources
func (v *VertexEmbedder) Close() error {
	return v.client.Close()
}
