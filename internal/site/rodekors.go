package site

// RodeKors returns the Norwegian Red Cross local-branch profile.
func RodeKors() *Profile {
	p := &Profile{
		Key:     "rodekors",
		Org:     "Røde Kors",
		BaseURL: "https://www.rodekors.no",
		Root:    "lokalforeninger",
		Output:  "rodekors-local",
		DenySlugs: []string{
			"om",
			"kontakt",
			"organisering",
			"ansatte",
			"nyheter",
			"aktuelt",
			"aktiviteter",
			"vakttelefon",
			"hjelpekorps",
			"frivillighet",
			"stotte",
			"støtte",
			"avisa",
			"om-oss",
			"om-organisasjonen",
			"om-telemark-rode-kors",
			"om-vestfold-rode-kors",
		},
		LocalitiesMarker: "lokalforeninger i",
		WelcomeMarker:    "velkommen",
		Labels:           []string{"Adresse", "Besøksadresse", "Postadresse"},
	}
	if err := p.Init(); err != nil {
		panic(err) // static profile
	}
	return p
}
