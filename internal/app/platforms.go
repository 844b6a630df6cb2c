package app

import "context"

func (s Service) Platforms(_ context.Context, req PlatformsRequest) (PlatformsResult, error) {
	environment := environmentName(req.Environment)
	path := s.lockfilePath(req.ManifestPath)
	platforms, err := s.Lockfile.Platforms(path, environment)
	if err != nil {
		return PlatformsResult{}, err
	}
	return PlatformsResult{
		Environment:  environment,
		LockfilePath: path,
		Platforms:    platforms,
	}, nil
}
