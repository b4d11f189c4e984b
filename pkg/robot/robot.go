package robot

import (
	"context"
	"fmt"
)

// Robot is a loaded robot description.
type Robot struct {
	Name      string
	Model     *Model
	Semantics *Semantics
	RootName  string
}

// MainGroupName returns the default planning group, "" without semantics.
func (r *Robot) MainGroupName() string {
	if r.Semantics == nil {
		return ""
	}
	return r.Semantics.MainGroupName()
}

// Loader provides robot description documents.
type Loader interface {
	LoadURDF(ctx context.Context, param string) (string, error)
	LoadSRDF(ctx context.Context, param string) (string, error)
}

// LoadRobot reads the URDF and SRDF from loader's default parameters and
// builds the robot.
func LoadRobot(ctx context.Context, loader Loader) (*Robot, error) {
	return LoadRobotFrom(ctx, loader, "", "")
}

// LoadRobotFrom is LoadRobot with the description parameters named.
func LoadRobotFrom(ctx context.Context, loader Loader, urdfParam, srdfParam string) (*Robot, error) {
	urdf, err := loader.LoadURDF(ctx, urdfParam)
	if err != nil {
		return nil, fmt.Errorf("failed to load URDF: %w", err)
	}
	model, err := ParseURDF(urdf)
	if err != nil {
		return nil, err
	}
	root, err := model.Root()
	if err != nil {
		return nil, err
	}

	srdf, err := loader.LoadSRDF(ctx, srdfParam)
	if err != nil {
		return nil, fmt.Errorf("failed to load SRDF: %w", err)
	}
	semantics, err := ParseSRDF(srdf)
	if err != nil {
		return nil, err
	}

	return &Robot{
		Name:      model.Name,
		Model:     model,
		Semantics: semantics,
		RootName:  root,
	}, nil
}
