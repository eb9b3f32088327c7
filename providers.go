package main

import (
	_ "github.com/researchly/research/providers/local"
	_ "github.com/researchly/research/providers/pocket"
)
