package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinatesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinates",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	projectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Project",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"slug":   &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: coordinatesType},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Category",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"name": &graphql.Field{Type: graphql.String},
			"icon": &graphql.Field{Type: graphql.String},
		},
	})

	themeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Theme",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"category_ids": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "POI",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: coordinatesType},
			"category_id": &graphql.Field{Type: graphql.String},
			"travel_time": &graphql.Field{
				Type:        graphql.Float,
				Description: "Travel time in seconds for a mode, null until enriched",
				Args: graphql.FieldConfigArgument{
					"mode": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					poi, ok := p.Source.(domain.POI)
					if !ok {
						return nil, nil
					}
					if t, ok := poi.TravelTime(domain.TransportMode(p.Args["mode"].(string))); ok {
						return t, nil
					}
					return nil, nil
				},
			},
		},
	})

	catalogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Catalog",
		Fields: graphql.Fields{
			"project":    &graphql.Field{Type: projectType},
			"themes":     &graphql.Field{Type: graphql.NewList(themeType)},
			"categories": &graphql.Field{Type: graphql.NewList(categoryType)},
			"pois":       &graphql.Field{Type: graphql.NewList(poiType)},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"poi_id":              &graphql.Field{Type: graphql.String},
			"travel_time_seconds": &graphql.Field{Type: graphql.Float},
			"distance_meters":     &graphql.Field{Type: graphql.Float},
			"coordinates": &graphql.Field{
				Type:        graphql.NewList(graphql.NewList(graphql.Float)),
				Description: "[lng, lat] pairs in travel order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, ok := p.Source.(*domain.RouteData)
					if !ok || r == nil {
						return nil, nil
					}
					out := make([][]float64, 0, len(r.Coordinates))
					for _, c := range r.Coordinates {
						out = append(out, []float64{c[0], c[1]})
					}
					return out, nil
				},
			},
		},
	})

	geolocationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Geolocation",
		Fields: graphql.Fields{
			"mode":                &graphql.Field{Type: graphql.String},
			"user_position":       &graphql.Field{Type: coordinatesType},
			"accuracy":            &graphql.Field{Type: graphql.Float},
			"is_enabled":          &graphql.Field{Type: graphql.Boolean},
			"distance_to_project": &graphql.Field{Type: graphql.Float},
			"effective_origin":    &graphql.Field{Type: coordinatesType},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Snapshot",
		Fields: graphql.Fields{
			"session_id":          &graphql.Field{Type: graphql.String},
			"ordered_pois":        &graphql.Field{Type: graphql.NewList(poiType)},
			"load_state":          &graphql.Field{Type: graphql.String},
			"route_data":          &graphql.Field{Type: routeType},
			"geolocation":         &graphql.Field{Type: geolocationType},
			"selection":           &graphql.Field{Type: graphql.String},
			"transport_mode":      &graphql.Field{Type: graphql.String},
			"disabled_categories": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"active_categories":   &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	session := func(p graphql.ResolveParams) (*usecases.Session, error) {
		return deps.Explorer.Get(p.Args["session_id"].(string))
	}
	sessionArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"projects": &graphql.Field{
				Type:        graphql.NewList(projectType),
				Description: "List all projects",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.ListProjects(p.Context)
				},
			},
			"project": &graphql.Field{
				Type:        catalogType,
				Description: "Full catalog of a project",
				Args: graphql.FieldConfigArgument{
					"slug": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.Project(p.Context, p.Args["slug"].(string))
				},
			},
			"session": &graphql.Field{
				Type:        snapshotType,
				Description: "Current snapshot of an explorer session",
				Args:        graphql.FieldConfigArgument{"session_id": sessionArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := session(p)
					if err != nil {
						return nil, err
					}
					return sess.Snapshot(), nil
				},
			},
		},
	})

	// Every mutation returns the snapshot after the change.
	mutation := func(desc string, args graphql.FieldConfigArgument, apply func(*usecases.Session, map[string]interface{}) error) *graphql.Field {
		args["session_id"] = sessionArg
		return &graphql.Field{
			Type:        snapshotType,
			Description: desc,
			Args:        args,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				sess, err := session(p)
				if err != nil {
					return nil, err
				}
				if err := apply(sess, p.Args); err != nil {
					return nil, err
				}
				return sess.Snapshot(), nil
			},
		}
	}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"selectPOI": mutation("Select a POI, or clear the selection with a null id",
				graphql.FieldConfigArgument{"poi_id": &graphql.ArgumentConfig{Type: graphql.String}},
				func(s *usecases.Session, args map[string]interface{}) error {
					id, _ := args["poi_id"].(string)
					_, err := s.SelectPOI(id)
					return err
				}),
			"setTransportMode": mutation("Switch between walk, bike and car",
				graphql.FieldConfigArgument{"mode": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}},
				func(s *usecases.Session, args map[string]interface{}) error {
					return s.SetTransportMode(domain.TransportMode(args["mode"].(string)))
				}),
			"toggleCategory": mutation("Flip a single category",
				graphql.FieldConfigArgument{"category_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}},
				func(s *usecases.Session, args map[string]interface{}) error {
					return s.ToggleCategory(args["category_id"].(string))
				}),
			"toggleTheme": mutation("Flip every category of a theme",
				graphql.FieldConfigArgument{"theme_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}},
				func(s *usecases.Session, args map[string]interface{}) error {
					return s.ToggleTheme(args["theme_id"].(string))
				}),
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
