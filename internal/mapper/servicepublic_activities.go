package mapper

// servicePublicActivities maps the Service Public local service types to
// directory activities. Unlisted types are not imported.
var servicePublicActivities = map[string]string{
	"aav":                            "Association aide aux victimes",
	"accompagnement_personnes_agees": "Accompagnement personnes agees",
	"ad":                             "Administration publique",
	"ademe":                          "Administration publique",
	"adil":                           "Agence départementale d'information sur le logement",
	"afpa":                           "Institut de formation",
	"agefiph":                        "Association de gestion du fonds pour l'insertion professionnelle des personnes handicapées",
	"anah":                           "Administration publique",
	"antenne_justice":                "Point justice",
	"apec":                           "Emploi, formation",
	"apecita":                        "Emploi, formation",
	"aract":                          "Emploi, formation",
	"ars":                            "Administration publique",
	"ars_antenne":                    "Administration publique",
	"asn":                            "Administration publique",
	"banque_de_france":               "Banques, caisses d'épargne",
	"bav":                            "Association aide aux victimes",
	"bdf":                            "Banques, caisses d'épargne",
	"bibli":                          "Bibliothèque médiathèque",
	"bsn":                            "Établissement militaire",
	"bureau_de_douane":               "Bureau de douane",
	"caa":                            "Tribunal",
	"cadastre":                       "Administration publique",
	"caf":                            "caisse d'allocations familiales (CAF)",
	"canope_atelier":                 "Emploi, formation",
	"canope_dt":                      "Emploi, formation",
	"cap_emploi":                     "Emploi, formation",
	"carif_oref":                     "Emploi, formation",
	"carsat":                         "Retraite",
	"caue":                           "Organisme de conseil",
	"ccd":                            "Tribunal",
	"cci":                            "Chambre de commerce et d'industrie",
	"cdad":                           "Point justice",
	"cdg":                            "Emploi, formation",
	"centre_detention":               "Etablissement pénitentiaire",
	"centre_impots_fonciers":         "Administration publique",
	"centre_penitentiaire":           "Etablissement pénitentiaire",
	"cerema":                         "Administration publique",
	"cesr":                           "Administration publique",
	"cg":                             "Administration publique",
	"chambre_agriculture":            "Chambre agriculture",
	"chambre_metier":                 "Chambre metier",
	"chambre_notaires":               "Notaire",
	"chu":                            "Hôpital",
	"cicas":                          "Retraite",
	"cidf":                           "Centre d'information sur les droits des femmes et des familles",
	"cij":                            "Point information jeunesse",
	"cio":                            "Centre d’information et d’orientation",
	"cirfa":                          "Établissement militaire",
	"cirgn":                          "Établissement militaire",
	"civi":                           "Tribunal",
	"clic":                           "Point d'information local dédié aux personnes âgées",
	"cnfpt":                          "Institut de formation",
	"cnra":                           "Administration publique",
	"commissariat_police":            "Commissariat de Police",
	"commission_conciliation":        "Administration publique",
	"conciliateur_fiscal":            "Administration publique",
	"conseil_culture":                "Administration publique",
	"cour_appel":                     "Tribunal",
	"cpam":                           "Sécurité sociale, mutuelle santé",
	"cr":                             "Administration publique",
	"crc":                            "Administration publique",
	"credit_municipal":               "Banques, caisses d'épargne",
	"creps":                          "Institut de formation",
	"crfpn":                          "Institut de formation",
	"crib":                           "Centre de ressources et d'information",
	"crous":                          "Résidence, foyer",
	"crpv":                           "Centre médical",
	"csl":                            "Etablissement pénitentiaire",
	"ctrc":                           "Administration publique",
	"dac":                            "Administration publique",
	"dcf":                            "Administration publique",
	"dcstep":                         "Administration publique",
	"dd_femmes":                      "Administration publique",
	"dd_fip":                         "Administration publique",
	"ddcspp":                         "Administration publique",
	"ddpjj":                          "Administration publique",
	"ddpp":                           "Administration publique",
	"ddsp":                           "Administration publique",
	"ddt":                            "Administration publique",
	"ddva":                           "Mission d'accueil et d'information des associations",
	"did_routes":                     "Administration publique",
	"dir_insee":                      "Administration publique",
	"dir_mer":                        "Administration publique",
	"dir_meteo":                      "Administration publique",
	"dir_pj":                         "Administration publique",
	"direccte":                       "Administration publique",
	"direccte_ut":                    "Administration publique",
	"direction_territoriale_police":  "Administration publique",
	"dmd":                            "Administration publique",
	"dml":                            "Administration publique",
	"dr_femmes":                      "Administration publique",
	"dr_fip":                         "Administration publique",
	"dr_insee":                       "Administration publique",
	"drac":                           "Administration publique",
	"draf":                           "Administration publique",
	"drajes":                         "Administration publique",
	"drari":                          "Administration publique",
	"drddi":                          "Administration publique",
	"dreal":                          "Administration publique",
	"dreal_ut":                       "Administration publique",
	"driea":                          "Administration publique",
	"driea_ut":                       "Administration publique",
	"drihl":                          "Administration publique",
	"drihl_ut":                       "Administration publique",
	"drjscs":                         "Administration publique",
	"droit_travail":                  "Administration publique",
	"dronisep":                       "Administration publique",
	"drpjj":                          "Administration publique",
	"drsp":                           "Administration publique",
	"dtam":                           "Administration publique",
	"dz_paf":                         "Administration publique",
	"epci":                           "Collectivité territoriale",
	"epide":                          "Administration publique",
	"esm":                            "Etablissement pénitentiaire",
	"espe":                           "Emploi, formation",
	"fdapp":                          "Fédération départementale pour la pêche et la protection du milieu aquatique",
	"fdc":                            "Association",
	"fr_renov":                       "Administration publique",
	"gendarmerie":                    "Gendarmerie",
	"gendarmerie_departementale":     "Gendarmerie",
	"gendarmerie_moto":               "Gendarmerie",
	"greta":                          "Institut de formation",
	"huissiers_justice":              "Huissier",
	"hypotheque":                     "Administration publique",
	"inpi":                           "Administration publique",
	"inspection_academique":          "Administration publique",
	"laboratoire_departemental":      "Administration publique",
	"maia":                           "Administration publique",
	"mairie":                         "Mairie",
	"mairie_com":                     "Mairie",
	"maison_arret":                   "Etablissement pénitentiaire",
	"maison_centrale":                "Etablissement pénitentiaire",
	"maison_emploi":                  "Emploi, formation",
	"maison_handicapees":             "Maison départementale des personnes handicapées",
	"maison_metropole_lyon":          "Collectivité territoriale",
	"mission_locale":                 "Emploi, formation",
	"mjd":                            "Point justice",
	"msa":                            "Sécurité sociale, mutuelle santé",
	"msap":                           "Guichet France Services",
	"ofii":                           "Administration publique",
	"onac":                           "Administration publique",
	"onf":                            "Administration publique",
	"ordre_avocats":                  "Ordre des avocats",
	"paierie_departementale":         "Trésorerie",
	"paierie_regionale":              "Trésorerie",
	"parc_naturel_regional":          "Espace vert et naturel",
	"paris_mairie":                   "Mairie",
	"paris_ppp":                      "Administration publique",
	"paris_ppp_gesvres":              "Administration publique",
	"pcb":                            "Point conseil budget",
	"permanence_juridique":           "Point justice",
	"pif":                            "Centre de ressources et d'information",
	"plateforme_naturalisation":      "Administration publique",
	"pmi":                            "Centre de protection maternelle et infantile (PMI)",
	"point_accueil_numerique":        "Point accueil numerique",
	"pole_emploi":                    "Emploi, formation",
	"pp_marseille":                   "Administration publique",
	"prefecture":                     "Administration publique",
	"prefecture_greffe_associations": "Administration publique",
	"prefecture_region":              "Administration publique",
	"prs":                            "Administration publique",
	"prudhommes":                     "Tribunal",
	"rectorat":                       "Administration publique",
	"rrc":                            "Hôpital",
	"safer":                          "Administration publique",
	"sdac":                           "Administration publique",
	"sde":                            "Administration publique",
	"sdis":                           "Administration publique",
	"sdjes":                          "Administration publique",
	"service_navigation":             "Administration publique",
	"sgami":                          "Administration publique",
	"sie":                            "Administration publique",
	"sip":                            "Trésorerie",
	"sous_pref":                      "Administration publique",
	"spip":                           "Administration publique",
	"ssti":                           "Administration publique",
	"suio":                           "Emploi, formation",
	"ta":                             "Tribunal",
	"te":                             "Tribunal",
	"tgi":                            "Tribunal",
	"ti":                             "Administration publique",
	"tresorerie":                     "Trésorerie",
	"tribunal_commerce":              "Tribunal",
	"urcaue":                         "Association",
	"urssaf":                         "Service des impôts des entreprises du centre des finances publiques",
}
