package script

// Templates is the fixed registry of named script templates shipped with
// the core, each a canned document following the Document shape with
// {{placeholder}} / {{placeholder|default:value}} markers. Templates are
// data, not code.
//
// Domain handler parameters (camera settings, filter names, exposure
// times, ...) are opaque here: the templates merely shape the parameter
// documents a real observation-task handler would consume.
var Templates = map[string]map[string]any{
	"imaging": {
		"sequence": map[string]any{
			"id":             "imaging_{{target_name}}",
			"strategy":       1, // Parallel
			"maxConcurrency": 4,
			"targets": []any{
				map[string]any{
					"name": "{{target_name}}",
					"tasks": []any{
						map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "camera", "timeout_ms": 5000}},
						map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "mount", "timeout_ms": 5000}},
						map[string]any{"type": "plate_solve", "parameters": map[string]any{"exposure_time": 5.0, "gain": "{{gain|default:100}}"}},
						map[string]any{"type": "auto_focus", "parameters": map[string]any{"filter": "{{filter|default:Luminance}}", "samples": 7}},
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type":    "light",
							"count":         "{{frame_count|default:10}}",
							"exposure_time": "{{exposure_time|default:120}}",
							"gain":          "{{gain|default:100}}",
							"binning":       "{{binning|default:1}}",
							"filter":        "{{filter|default:Luminance}}",
						}},
					},
				},
				map[string]any{
					"name":         "calibration_darks",
					"dependencies": []any{"{{target_name}}"},
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "dark", "count": 10,
							"exposure_time": "{{exposure_time|default:120}}", "gain": "{{gain|default:100}}",
						}},
					},
				},
				map[string]any{
					"name":         "calibration_flats",
					"dependencies": []any{"calibration_darks"},
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "flat", "count": 10, "exposure_time": 5.0,
							"gain": "{{gain|default:100}}", "filter": "{{filter|default:Luminance}}",
						}},
					},
				},
				map[string]any{
					"name":         "calibration_bias",
					"dependencies": []any{"calibration_flats"},
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "bias", "count": 20, "gain": "{{gain|default:100}}",
						}},
					},
				},
			},
		},
	},
	"calibration": {
		"sequence": map[string]any{
			"id":       "calibration_master",
			"strategy": 0, // Sequential
			"targets": []any{
				map[string]any{
					"name": "bias_frames",
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "bias", "count": "{{bias_count|default:30}}", "gain": "{{gain|default:100}}",
						}},
					},
				},
				map[string]any{
					"name":         "dark_frames",
					"dependencies": []any{"bias_frames"},
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "dark", "count": "{{dark_count|default:10}}", "gain": "{{gain|default:100}}",
						}},
					},
				},
				map[string]any{
					"name":         "flat_frames",
					"dependencies": []any{"dark_frames"},
					"tasks": []any{
						map[string]any{"type": "capture_sequence", "parameters": map[string]any{
							"frame_type": "flat", "count": "{{flat_count|default:10}}", "exposure_time": "{{flat_exposure|default:5.0}}",
						}},
					},
				},
			},
		},
	},
	"focus": {
		"sequence": map[string]any{
			"id":       "focus_{{device_name}}",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "autofocus",
					"tasks": []any{
						map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "focuser"}},
						map[string]any{"type": "auto_focus", "parameters": map[string]any{
							"samples": "{{samples|default:7}}", "step_size": "{{step_size|default:100}}",
						}},
					},
				},
			},
		},
	},
	"plate-solve": {
		"sequence": map[string]any{
			"id":       "plate_solve_{{target_name}}",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "solve",
					"tasks": []any{
						map[string]any{"type": "plate_solve", "parameters": map[string]any{
							"exposure_time": "{{exposure_time|default:5.0}}", "timeout_ms": "{{timeout_ms|default:60000}}",
						}},
					},
				},
			},
		},
	},
	"device-setup": {
		"sequence": map[string]any{
			"id":             "device_setup",
			"strategy":       1,
			"maxConcurrency": 4,
			"targets": []any{
				map[string]any{"name": "camera", "tasks": []any{map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "camera"}}}},
				map[string]any{"name": "mount", "tasks": []any{map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "mount"}}}},
				map[string]any{"name": "focuser", "tasks": []any{map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "focuser"}}}},
				map[string]any{"name": "filter_wheel", "tasks": []any{map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "filter_wheel"}}}},
			},
		},
	},
	"safety-check": {
		"sequence": map[string]any{
			"id":       "safety_check",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "checks",
					"tasks": []any{
						map[string]any{"type": "safety_check", "parameters": map[string]any{"check": "weather"}},
						map[string]any{"type": "safety_check", "parameters": map[string]any{"check": "cloud_cover", "max_percent": "{{max_cloud_cover|default:30}}"}},
						map[string]any{"type": "safety_check", "parameters": map[string]any{"check": "horizon_limit", "min_altitude": "{{min_altitude|default:20}}"}},
					},
				},
			},
		},
	},
	"script-execution": {
		"sequence": map[string]any{
			"id":       "script_execution_{{script_name}}",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "run",
					"tasks": []any{
						map[string]any{"type": "script_task", "parameters": map[string]any{
							"script_type": "{{script_type}}", "timeout": "{{timeout|default:60.0}}",
						}},
					},
				},
			},
		},
	},
	"filter-change": {
		"sequence": map[string]any{
			"id":       "filter_change_{{filter}}",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "change",
					"tasks": []any{
						map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "filter_wheel"}},
						map[string]any{"type": "filter_change", "parameters": map[string]any{"filter": "{{filter}}"}},
					},
				},
			},
		},
	},
	"guiding-setup": {
		"sequence": map[string]any{
			"id":       "guiding_setup",
			"strategy": 0,
			"targets": []any{
				map[string]any{
					"name": "guiding",
					"tasks": []any{
						map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "guider"}},
						map[string]any{"type": "guiding_calibrate", "parameters": map[string]any{"exposure_time": "{{exposure_time|default:2.0}}"}},
						map[string]any{"type": "guiding_start", "parameters": map[string]any{"aggressiveness": "{{aggressiveness|default:7}}"}},
					},
				},
			},
		},
	},
	"complete-observation": {
		"sequence": map[string]any{
			"id":             "complete_observation_{{target_name}}",
			"strategy":       2, // Adaptive
			"maxConcurrency": 2,
			"targets": []any{
				map[string]any{"name": "safety", "tasks": []any{map[string]any{"type": "safety_check", "parameters": map[string]any{"check": "weather"}}}},
				map[string]any{"name": "devices", "dependencies": []any{"safety"}, "tasks": []any{
					map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "camera"}},
					map[string]any{"type": "device_connect", "parameters": map[string]any{"device_type": "mount"}},
				}},
				map[string]any{"name": "guiding", "dependencies": []any{"devices"}, "tasks": []any{
					map[string]any{"type": "guiding_start", "parameters": map[string]any{}},
				}},
				map[string]any{"name": "focus", "dependencies": []any{"devices"}, "tasks": []any{
					map[string]any{"type": "auto_focus", "parameters": map[string]any{"samples": 7}},
				}},
				map[string]any{"name": "{{target_name}}", "dependencies": []any{"guiding", "focus"}, "tasks": []any{
					map[string]any{"type": "capture_sequence", "parameters": map[string]any{
						"frame_type": "light", "count": "{{frame_count|default:10}}", "exposure_time": "{{exposure_time|default:120}}",
					}},
				}},
			},
		},
	},
}
